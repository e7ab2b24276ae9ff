package services

import (
	"time"

	"cloudsync/models"
)

// Tree Assembler：纯函数，把扁平的层级行重建为嵌套树。
// 父路径不在输入集合里的目录成为根节点，父路径缺失的文件进入平铺的 Files 列表
// （回收站视图依赖这一点：父与子可能在不同时间被删除，落在同一查询窗口之外）。

type TreeFile struct {
	ID       string       `json:"id"`
	Path     string       `json:"path"`
	DeleteAt *time.Time   `json:"delete_at,omitempty"`
	File     *models.File `json:"file,omitempty"`
}

type TreeNode struct {
	ID       string      `json:"id"`
	Path     string      `json:"path"`
	DeleteAt *time.Time  `json:"delete_at,omitempty"`
	Files    []TreeFile  `json:"files"`
	Children []*TreeNode `json:"children"`
}

type TreeResult struct {
	Hierarchies []*TreeNode `json:"hierarchies"`
	Files       []TreeFile  `json:"files"`
}

func AssembleTree(rows []models.HierarchyEntry) TreeResult {
	result := TreeResult{
		Hierarchies: make([]*TreeNode, 0),
		Files:       make([]TreeFile, 0),
	}

	nodes := make(map[string]*TreeNode, len(rows))
	for i := range rows {
		if rows[i].IsFile() {
			continue
		}
		withSlash, _ := normalizePath(rows[i].Path)
		nodes[withSlash] = &TreeNode{
			ID:       rows[i].ID,
			Path:     rows[i].Path,
			DeleteAt: rows[i].DeleteAt,
			Files:    make([]TreeFile, 0),
			Children: make([]*TreeNode, 0),
		}
	}

	for i := range rows {
		parent := nodes[parentPath(rows[i].Path)]

		if rows[i].IsFile() {
			file := TreeFile{
				ID:       rows[i].ID,
				Path:     rows[i].Path,
				DeleteAt: rows[i].DeleteAt,
				File:     rows[i].File,
			}
			if parent != nil {
				parent.Files = append(parent.Files, file)
			} else {
				result.Files = append(result.Files, file)
			}
			continue
		}

		withSlash, _ := normalizePath(rows[i].Path)
		node := nodes[withSlash]
		if parent != nil && parent != node {
			parent.Children = append(parent.Children, node)
		} else {
			result.Hierarchies = append(result.Hierarchies, node)
		}
	}

	return result
}
