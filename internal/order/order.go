package order

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

type PayStatus string

const (
	PayStatusNone     PayStatus = ""
	PayStatusWaiting  PayStatus = "waiting"
	PayStatusComplete PayStatus = "complete"
)

type Order struct {
	ID        string    `json:"id" bson:"id"`
	Username  string    `json:"username" bson:"username"`
	PayStatus PayStatus `json:"pay_status" bson:"pay_status"`
}

// Usernames steering the payment outcome.
const (
	SystemFailureUser     = "exception"
	InsufficientFundsUser = "insufficient"
)

var (
	// ErrNotEnoughMoney is a business outcome: the order is kept
	// waiting for payment and the transaction commits.
	ErrNotEnoughMoney = errors.Error("not enough money")

	ErrPaymentSystem = errors.Error("payment system failure")
)

const EventPlaced = "order_placed"

type publisher interface {
	PublishAfterCommit(ctx context.Context, e events.Event) error
}

func NewService(orders repo.Repo[Order], pub publisher, log logger.Logger) *Service {
	return &Service{
		orders: orders,
		pub:    pub,
		def: txn.NewDefinition(
			txn.WithName("order.service.place"),
			txn.NoRollbackFor(ErrNotEnoughMoney),
		),
		log: log.With("order_service"),
	}
}

type Service struct {
	orders repo.Repo[Order]
	pub    publisher
	def    txn.Definition
	log    logger.Logger
}

// Place stores the order and runs the payment. A system failure rolls
// everything back, ErrNotEnoughMoney leaves a committed waiting order.
func (s *Service) Place(ctx context.Context, username string) (Order, error) {
	o := Order{ID: uuid.NewString(), Username: username}

	err := txn.Run(ctx, s.def, func(ctx context.Context) error {
		s.log.Debugf("order save: %s", o.ID)
		err := s.orders.Insert(ctx, o.ID, o)
		if err != nil {
			return errors.WrapFail(err, "save order")
		}

		s.log.Debugf("entering payment process for %s", username)
		payErr := s.pay(username)

		switch {
		case errors.Is(payErr, ErrNotEnoughMoney):
			s.log.Infof("not enough money for order %s, waiting for payment", o.ID)
			o.PayStatus = PayStatusWaiting
		case payErr != nil:
			return payErr
		default:
			o.PayStatus = PayStatusComplete
		}

		_, err = s.orders.Update(ctx, o.ID, func(stored *Order) {
			stored.PayStatus = o.PayStatus
		})
		if err != nil {
			return errors.WrapFail(err, "update order")
		}

		err = s.pub.PublishAfterCommit(ctx, events.Event{
			Type:    EventPlaced,
			Key:     o.ID,
			Payload: o,
			At:      time.Now(),
		})
		return errors.Join(payErr, err)
	})

	return o, err
}

func (s *Service) Find(ctx context.Context, id string) (Order, bool, error) {
	return s.orders.Get(ctx, id)
}

func (s *Service) pay(username string) error {
	switch username {
	case SystemFailureUser:
		return ErrPaymentSystem
	case InsufficientFundsUser:
		return ErrNotEnoughMoney
	default:
		return nil
	}
}
