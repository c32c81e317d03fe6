// Package actor runs the operations of one stateful owner strictly one at a time.
package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
)

const defaultInboxSize = 64

type message struct {
	fn    func() error
	reply chan error
}

// Mailbox owns a goroutine that executes submitted functions in arrival order.
// Everything touched only from inside those functions needs no further locking.
type Mailbox struct {
	inbox    chan message
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewMailbox() *Mailbox {
	mailbox := &Mailbox{
		inbox: make(chan message, defaultInboxSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go mailbox.run()

	return mailbox
}

// Do - runs fn inside the mailbox and waits for its result.
func (that *Mailbox) Do(ctx context.Context, fn func() error) error {
	msg := message{fn: fn, reply: make(chan error, 1)}

	select {
	case <-that.stop:
		return apperror.ErrActorStopped
	default:
	}

	select {
	case that.inbox <- msg:
	case <-that.stop:
		return apperror.ErrActorStopped
	case <-ctx.Done():
		return fmt.Errorf("mailbox submit: %w", ctx.Err())
	}

	select {
	case err := <-msg.reply:
		return err
	case <-that.done:
		// the loop replies before it exits, so a processed message is already answered
		select {
		case err := <-msg.reply:
			return err
		default:
			return apperror.ErrActorStopped
		}
	case <-ctx.Done():
		return fmt.Errorf("mailbox wait: %w", ctx.Err())
	}
}

// Post - enqueues fn without waiting. Returns false once the mailbox is stopped.
func (that *Mailbox) Post(fn func()) bool {
	msg := message{
		fn: func() error {
			fn()
			return nil
		},
		reply: make(chan error, 1),
	}

	select {
	case <-that.stop:
		return false
	default:
	}

	select {
	case that.inbox <- msg:
		return true
	case <-that.stop:
		return false
	}
}

// Stop - stops processing after the current function. Safe to call from inside the mailbox.
func (that *Mailbox) Stop() {
	that.stopOnce.Do(func() {
		close(that.stop)
	})
}

func (that *Mailbox) Stopped() bool {
	select {
	case <-that.stop:
		return true
	default:
		return false
	}
}

func (that *Mailbox) run() {
	defer close(that.done)

	for {
		select {
		case <-that.stop:
			return
		default:
		}

		select {
		case <-that.stop:
			return
		case msg := <-that.inbox:
			msg.reply <- execute(msg.fn)
		}
	}
}

func execute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered from panic: %v", r)
		}
	}()

	return fn()
}
