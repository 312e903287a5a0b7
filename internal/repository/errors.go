package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed 条件写入未命中任何行（状态已变化或调用方不匹配）
	ErrConditionFailed = errors.New("conditional write matched no rows")
	// ErrPairAreFriends 用户对已经是好友
	ErrPairAreFriends = errors.New("users are already friends")
	// ErrPairHasPending 用户对之间已有待处理请求
	ErrPairHasPending = errors.New("pending request already exists for pair")
)

// IsDuplicate 是否唯一约束冲突
// TranslateError 覆盖主流驱动，字符串匹配兜底未翻译的驱动错误
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
