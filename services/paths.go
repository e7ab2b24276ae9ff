package services

import (
	"path"
	"strings"
)

// 目录路径以 / 结尾，文件路径以扩展名结尾。两种规范形式之间的转换是幂等的。

func normalizePath(p string) (withSlash string, withoutSlash string) {
	withoutSlash = strings.TrimSuffix(p, "/")
	withSlash = withoutSlash + "/"
	return withSlash, withoutSlash
}

func isFilePath(p string) bool {
	return !strings.HasSuffix(p, "/") && path.Ext(p) != ""
}

// splitAncestors 返回从根到节点自身的每一级前缀路径。
// 中间层级一律目录规范化；最后一段若是文件路径则保持文件形式。
func splitAncestors(p string) []string {
	_, withoutSlash := normalizePath(p)
	if withoutSlash == "" {
		return nil
	}

	isFile := isFilePath(p)
	segments := strings.Split(strings.TrimPrefix(withoutSlash, "/"), "/")
	ancestors := make([]string, 0, len(segments))

	current := ""
	for i, segment := range segments {
		current += "/" + segment
		if i == len(segments)-1 && isFile {
			ancestors = append(ancestors, current)
		} else {
			ancestors = append(ancestors, current+"/")
		}
	}
	return ancestors
}

// parentPath 返回节点的父目录路径；顶层节点返回 "/"。
func parentPath(p string) string {
	_, withoutSlash := normalizePath(p)
	idx := strings.LastIndex(withoutSlash, "/")
	if idx <= 0 {
		return "/"
	}
	return withoutSlash[:idx+1]
}
