package service

import (
	"errors"
	"fmt"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrNotAuthenticated     = errors.New("用户未登录")
	ErrInvalidCredentials   = errors.New("邮箱或密码错误")
	ErrUserExist            = errors.New("用户已存在")
	ErrFederatedDisabled    = errors.New("未配置第三方登录")
	ErrNoActiveConversation = errors.New("没有选中的会话")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrAttachmentsDisabled  = errors.New("未启用附件存储")
	ErrThemeInvalid         = errors.New("不支持的主题")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrNotAuthenticated:     Unauthorized,
	ErrInvalidCredentials:   Unauthorized,
	ErrUserExist:            BadRequest,
	ErrFederatedDisabled:    BadRequest,
	ErrNoActiveConversation: BadRequest,
	ErrConversationNotFound: NotFound,
	ErrMessageNotFound:      NotFound,
	ErrAttachmentsDisabled:  BadRequest,
	ErrThemeInvalid:         BadRequest,
	UnauthorizedError:       Forbidden,
	UnExpectedError:         InternalServerError,
}

// FailureKind 失败分类
type FailureKind string

const (
	FailureAuthentication FailureKind = "authentication"
	FailureWrite          FailureKind = "write"
	FailureSubscription   FailureKind = "subscription"
)

// Failure 带分类与操作名的错误，Err 可能是上面的哨兵错误
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *Failure) Unwrap() error {
	return e.Err
}

func fail(kind FailureKind, op string, err error) error {
	return &Failure{Kind: kind, Op: op, Err: err}
}

// KindOf 取出错误链上的失败分类
func KindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// CodeOf 按错误链查找业务码，认证类失败默认 401
func CodeOf(err error) (int, bool) {
	for sentinel, code := range ErrorMap {
		if errors.Is(err, sentinel) {
			return code, true
		}
	}
	if kind, ok := KindOf(err); ok && kind == FailureAuthentication {
		return Unauthorized, true
	}
	return 0, false
}
