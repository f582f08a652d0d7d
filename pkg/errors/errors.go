package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kerr"
)

// ErrorCode 错误码类型
type ErrorCode int

const (
	// Kafka相关错误 1xxx
	ErrCodeKafkaConnect          ErrorCode = 1001
	ErrCodePoll                  ErrorCode = 1002
	ErrCodePollFatal             ErrorCode = 1003
	ErrCodeCommit                ErrorCode = 1004
	ErrCodeTransientCoordination ErrorCode = 1005
	ErrCodeCommitRetryExhausted  ErrorCode = 1006
	ErrCodeNothingToCommit       ErrorCode = 1007

	// Offset相关错误 2xxx
	ErrCodeNoPartitions    ErrorCode = 2001
	ErrCodeWatermark       ErrorCode = 2002
	ErrCodeOffsetsForTimes ErrorCode = 2003
	ErrCodeAssign          ErrorCode = 2004

	// Schema相关错误 3xxx
	ErrCodeSchemaConnect ErrorCode = 3001
	ErrCodeSchemaFetch   ErrorCode = 3002
	ErrCodeSchemaDecode  ErrorCode = 3003

	// 交互相关错误 4xxx
	ErrCodeUserInput ErrorCode = 4001
	ErrCodeExport    ErrorCode = 4002

	// 配置相关错误 5xxx
	ErrCodeConfigLoad     ErrorCode = 5001
	ErrCodeConfigValidate ErrorCode = 5002
)

// InvestigatorError 自定义错误类型
type InvestigatorError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *InvestigatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *InvestigatorError) Unwrap() error {
	return e.Err
}

// New 创建新错误
func New(code ErrorCode, message string) *InvestigatorError {
	return &InvestigatorError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code ErrorCode, message string, err error) *InvestigatorError {
	return &InvestigatorError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 返回错误链上第一个错误码，没有则返回0
func CodeOf(err error) ErrorCode {
	var ie *InvestigatorError
	if stderrors.As(err, &ie) {
		return ie.Code
	}
	return 0
}

// IsCode 判断错误链上是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var ie *InvestigatorError
		if !stderrors.As(err, &ie) {
			return false
		}
		if ie.Code == code {
			return true
		}
		err = ie.Err
	}
	return false
}

// IsFatal 判断错误是否需要终止整个会话
func IsFatal(err error) bool {
	return IsCode(err, ErrCodePollFatal) || IsCode(err, ErrCodeKafkaConnect)
}

// transientCoordinationErrors 协调器相关的可重试错误
var transientCoordinationErrors = []error{
	kerr.RebalanceInProgress,
	kerr.UnknownMemberID,
	kerr.IllegalGeneration,
	kerr.NotCoordinator,
	kerr.CoordinatorLoadInProgress,
	kerr.CoordinatorNotAvailable,
}

// IsTransientCoordination 判断提交错误是否为可重试的协调错误
func IsTransientCoordination(err error) bool {
	if err == nil {
		return false
	}

	if IsCode(err, ErrCodeTransientCoordination) {
		return true
	}

	for _, target := range transientCoordinationErrors {
		if stderrors.Is(err, target) {
			return true
		}
	}

	// 部分客户端只在消息中携带原因
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rebalance") ||
		strings.Contains(msg, "unknown member") ||
		strings.Contains(msg, "unknown_member")
}

// Is 标准库errors.Is的别名
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
