package api

import (
	"context"

	"github.com/nikmy/txprop/internal/member"
	"github.com/nikmy/txprop/internal/order"
	"github.com/nikmy/txprop/internal/scenario"
)

type Server interface {
	Serve(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type membersService interface {
	JoinV1(ctx context.Context, username string) (member.Member, error)
	JoinV2(ctx context.Context, username string) (member.Member, error)
	FindMember(ctx context.Context, username string) (member.Member, bool, error)
	FindLog(ctx context.Context, message string) (member.Log, bool, error)
}

type ordersService interface {
	Place(ctx context.Context, username string) (order.Order, error)
	Find(ctx context.Context, id string) (order.Order, bool, error)
}

type scenarioRunner interface {
	Run(ctx context.Context, name string) (scenario.Report, error)
}
