package auth

// GetPermissionModel 返回 OpenFGA 授权模型 DSL
// template 的 viewer/editor 权限沿 owner 传递,migrator 单独授予
// study 下挂的模板通过 study#member 获得只读访问
func GetPermissionModel() string {
	return `
model
  schema 1.1

type user

type study
  relations
    define owner: [user]
    define member: [user] or owner
    define editor: [user] or owner

type template
  relations
    define owner: [user]
    define editor: [user] or owner
    define viewer: [user] or editor or member from parent_study
    define deleter: [user] or owner
    define migrator: [user] or owner
    define parent_study: [study]
`
}
