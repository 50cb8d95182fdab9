package notify

import "time"

// Notifier 业务层使用的提示接口
type Notifier interface {
	Success(text string, opts ...Option)
	Error(text string, opts ...Option)
	Info(text string, opts ...Option)
	Warning(text string, opts ...Option)
}

type options struct {
	timeout time.Duration
}

type Option func(*options)

// WithTimeout 覆盖默认显示时长
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Relay 把语义化的提示转交给 Board
type Relay struct {
	board *Board
}

func NewRelay(board *Board) *Relay {
	return &Relay{board: board}
}

func (s *Relay) Success(text string, opts ...Option) {
	s.show(text, SeveritySuccess, opts)
}

func (s *Relay) Error(text string, opts ...Option) {
	s.show(text, SeverityError, opts)
}

func (s *Relay) Info(text string, opts ...Option) {
	s.show(text, SeverityInfo, opts)
}

func (s *Relay) Warning(text string, opts ...Option) {
	s.show(text, SeverityWarning, opts)
}

func (s *Relay) show(text string, severity Severity, opts []Option) {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	s.board.Show(text, severity, o.timeout)
}
