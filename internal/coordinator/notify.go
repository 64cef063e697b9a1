package coordinator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-tracker/internal/remote"
)

// Op names the user action a Notification reports on.
type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

var (
	successText = map[Op]string{
		OpCreate: "Task created successfully!",
		OpUpdate: "Task updated successfully!",
		OpDelete: "Task deleted successfully!",
	}
	failureText = map[Op]string{
		OpLoad:   "Failed to load tasks",
		OpCreate: "Failed to create task",
		OpUpdate: "Failed to update task",
		OpDelete: "Failed to delete task",
	}
)

// Notification describes the outcome of one operation. Kind and Detail are
// set only for failures.
type Notification struct {
	Op      Op
	TaskID  int64
	Title   string
	OK      bool
	Kind    remote.Kind
	Message string
	Detail  string
}

func (n Notification) String() string {
	if n.OK {
		return n.Message
	}
	if n.Detail == "" {
		return fmt.Sprintf("%s (%s)", n.Message, n.Kind)
	}
	return fmt.Sprintf("%s (%s): %s", n.Message, n.Kind, n.Detail)
}

func success(op Op, id int64, title string) Notification {
	return Notification{Op: op, TaskID: id, Title: title, OK: true, Message: successText[op]}
}

func failure(op Op, id int64, title string, err error) Notification {
	n := Notification{Op: op, TaskID: id, Title: title, Kind: remote.KindOf(err), Message: failureText[op]}
	var re *remote.Error
	if errors.As(err, &re) {
		n.Detail = re.Message
	} else if err != nil {
		n.Detail = err.Error()
	}
	return n
}

// Notifier receives one Notification per finished operation. Notify must
// not block for long; it runs on the mutation path.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// ChanNotifier delivers notifications on a buffered channel. When the
// reader falls behind, new notifications are dropped and logged.
type ChanNotifier struct {
	C      chan Notification
	logger *zap.Logger
}

// NewChanNotifier returns a notifier holding up to buffer undelivered
// notifications.
func NewChanNotifier(buffer int, logger *zap.Logger) *ChanNotifier {
	return &ChanNotifier{C: make(chan Notification, buffer), logger: logger}
}

func (n *ChanNotifier) Notify(note Notification) {
	select {
	case n.C <- note:
	default:
		n.logger.Warn("notification dropped", zap.String("op", string(note.Op)), zap.Int64("task_id", note.TaskID))
	}
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier writes every notification to logger.
func NewLogNotifier(logger *zap.Logger) Notifier {
	return logNotifier{logger: logger}
}

func (n logNotifier) Notify(note Notification) {
	fields := []zap.Field{zap.String("op", string(note.Op)), zap.Int64("task_id", note.TaskID)}
	if note.OK {
		n.logger.Info(note.Message, fields...)
		return
	}
	n.logger.Warn(note.Message, append(fields, zap.String("kind", string(note.Kind)), zap.String("detail", note.Detail))...)
}
