package member

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikmy/txprop/internal/events"
	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

// Config switches transactions on the service and both repositories.
type Config struct {
	ServiceTx      bool `yaml:"service_tx"`
	MemberRepoTx   bool `yaml:"member_repo_tx"`
	LogRepoTx      bool `yaml:"log_repo_tx"`
	LogRequiresNew bool `yaml:"log_requires_new"`
}

func (c Config) definitions() (service, members, logs *txn.Definition) {
	def := func(on bool, opts ...txn.Option) *txn.Definition {
		if !on {
			return nil
		}
		d := txn.NewDefinition(opts...)
		return &d
	}

	logOpts := []txn.Option{txn.WithName("member.log_repository.save")}
	if c.LogRequiresNew {
		logOpts = append(logOpts, txn.RequiresNew())
	}

	return def(c.ServiceTx, txn.WithName("member.service.join")),
		def(c.MemberRepoTx, txn.WithName("member.member_repository.save")),
		def(c.LogRepoTx, logOpts...)
}

const EventJoined = "member_joined"

func NewService(
	cfg Config,
	members repo.Repo[Member],
	logs repo.Repo[Log],
	pub publisher,
	log logger.Logger,
) *Service {
	serviceDef, membersDef, logsDef := cfg.definitions()

	return &Service{
		Members: NewMemberRepository(members, membersDef, log),
		Logs:    NewLogRepository(logs, logsDef, log),
		pub:     pub,
		tx:      transactional{serviceDef},
		log:     log.With("member_service"),
	}
}

type Service struct {
	Members *MemberRepository
	Logs    *LogRepository

	pub publisher
	tx  transactional
	log logger.Logger
}

// JoinV1 saves the member and its log entry, any failure is returned.
func (s *Service) JoinV1(ctx context.Context, username string) (Member, error) {
	m, l := newEntries(username)

	err := s.tx.run(ctx, func(ctx context.Context) error {
		s.log.Debugf("== member repository call start ==")
		err := s.Members.Save(ctx, m)
		if err != nil {
			return errors.WrapFail(err, "save member")
		}

		s.log.Debugf("== log repository call start ==")
		err = s.Logs.Save(ctx, l)
		if err != nil {
			return errors.WrapFail(err, "save log")
		}

		return s.publishJoined(ctx, m)
	})
	return m, err
}

// JoinV2 is JoinV1 which swallows the log failure and goes on.
func (s *Service) JoinV2(ctx context.Context, username string) (Member, error) {
	m, l := newEntries(username)

	err := s.tx.run(ctx, func(ctx context.Context) error {
		s.log.Debugf("== member repository call start ==")
		err := s.Members.Save(ctx, m)
		if err != nil {
			return errors.WrapFail(err, "save member")
		}

		s.log.Debugf("== log repository call start ==")
		err = s.Logs.Save(ctx, l)
		if err != nil {
			s.log.Warn(errors.WrapFail(err, "save log"))
			s.log.Infof("log save failure recovered, continue joining %s", username)
		}

		return s.publishJoined(ctx, m)
	})
	return m, err
}

func (s *Service) FindMember(ctx context.Context, username string) (Member, bool, error) {
	return s.Members.Find(ctx, username)
}

func (s *Service) FindLog(ctx context.Context, message string) (Log, bool, error) {
	return s.Logs.Find(ctx, message)
}

func (s *Service) publishJoined(ctx context.Context, m Member) error {
	return s.pub.PublishAfterCommit(ctx, events.Event{
		Type:    EventJoined,
		Key:     m.ID,
		Payload: m,
		At:      time.Now(),
	})
}

func newEntries(username string) (Member, Log) {
	return Member{ID: uuid.NewString(), Username: username},
		Log{ID: uuid.NewString(), Message: username}
}
