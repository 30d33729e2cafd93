package service

import "errors"

// 互动服务错误分类
// AuthRequired / InvalidInput 未写入任何状态，直接上抛给调用方；
// StoreUnavailable 是否上抛取决于各操作的失败策略（见各方法注释）
var (
	// ErrAuthRequired 操作需要登录用户
	ErrAuthRequired = errors.New("需要登录")
	// ErrInvalidInput 输入内容为空或不合法
	ErrInvalidInput = errors.New("输入不合法")
	// ErrNotFound 预告片不存在
	ErrNotFound = errors.New("预告片不存在")
	// ErrStoreUnavailable 存储层调用失败
	ErrStoreUnavailable = errors.New("存储不可用")
)
