package member

import (
	"context"
	"strings"

	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

// LogFailureMarker in a log message makes LogRepository.Save fail
// after the row has been written.
const LogFailureMarker = "logException"

var ErrLogFailure = errors.Error("log message rejected")

// transactional runs calls in a transaction of def, or as they are if def is nil.
type transactional struct {
	def *txn.Definition
}

func (t transactional) run(ctx context.Context, do func(ctx context.Context) error) error {
	if t.def == nil {
		return do(ctx)
	}
	return txn.Run(ctx, *t.def, do)
}

func NewMemberRepository(items repo.Repo[Member], def *txn.Definition, log logger.Logger) *MemberRepository {
	return &MemberRepository{
		items: items,
		tx:    transactional{def},
		log:   log.With("member_repository"),
	}
}

type MemberRepository struct {
	items repo.Repo[Member]
	tx    transactional
	log   logger.Logger
}

func (r *MemberRepository) Save(ctx context.Context, m Member) error {
	return r.tx.run(ctx, func(ctx context.Context) error {
		r.log.Debugf("member save: %s", m.Username)
		return r.items.Insert(ctx, m.ID, m)
	})
}

func (r *MemberRepository) Find(ctx context.Context, username string) (Member, bool, error) {
	found, err := r.items.Select(ctx, repo.Where(func(m Member) bool {
		return m.Username == username
	}))
	if err != nil || len(found) == 0 {
		return Member{}, false, errors.WrapFail(err, "find member")
	}
	return found[0], true, nil
}

func NewLogRepository(items repo.Repo[Log], def *txn.Definition, log logger.Logger) *LogRepository {
	return &LogRepository{
		items: items,
		tx:    transactional{def},
		log:   log.With("log_repository"),
	}
}

type LogRepository struct {
	items repo.Repo[Log]
	tx    transactional
	log   logger.Logger
}

func (r *LogRepository) Save(ctx context.Context, l Log) error {
	return r.tx.run(ctx, func(ctx context.Context) error {
		r.log.Debugf("log save: %s", l.Message)

		err := r.items.Insert(ctx, l.ID, l)
		if err != nil {
			return err
		}

		if strings.Contains(l.Message, LogFailureMarker) {
			r.log.Infof("log save failed on purpose: %s", l.Message)
			return ErrLogFailure
		}
		return nil
	})
}

func (r *LogRepository) Find(ctx context.Context, message string) (Log, bool, error) {
	found, err := r.items.Select(ctx, repo.Where(func(l Log) bool {
		return l.Message == message
	}))
	if err != nil || len(found) == 0 {
		return Log{}, false, errors.WrapFail(err, "find log")
	}
	return found[0], true, nil
}
