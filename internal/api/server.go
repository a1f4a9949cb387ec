package api

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nikmy/txprop/internal/member"
	"github.com/nikmy/txprop/internal/order"
	"github.com/nikmy/txprop/internal/repo"
	"github.com/nikmy/txprop/internal/scenario"
	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/txn"
)

type Deps struct {
	Provider  txn.Provider
	Members   membersService
	Orders    ordersService
	Scenarios scenarioRunner
}

func NewServer(cfg Config, log logger.Logger, deps Deps) Server {
	return newServer(cfg, log, deps)
}

func newServer(cfg Config, log logger.Logger, deps Deps) *server {
	cfg = cfg.withDefaults()
	serveLog := log.With("api_http_server")

	fiberCfg := fiber.Config{
		ReadTimeout:             cfg.HTTP.ReadTimeout,
		WriteTimeout:            cfg.HTTP.WriteTimeout,
		IdleTimeout:             cfg.HTTP.IdleTimeout,
		DisableStartupMessage:   true,
		EnableTrustedProxyCheck: len(cfg.Proxy.Trusted) > 0,
		ProxyHeader:             cfg.Proxy.Header,
		TrustedProxies:          cfg.Proxy.Trusted,
		RequestMethods:          []string{fiber.MethodGet, fiber.MethodPost},
	}

	fiberCfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return sendError(c, fiberErr.Code, fiberErr.Message)
		}

		serveLog.Warn(errors.WrapFail(err, "handle http request"))
		return sendError(c, http.StatusInternalServerError, "internal error")
	}

	s := &server{
		deps: deps,
		http: fiber.New(fiberCfg),
		addr: cfg.HTTP.Addr,
		log:  serveLog,
	}

	s.setupRoutes()

	return s
}

type server struct {
	deps Deps
	http *fiber.App
	addr string
	log  logger.Logger
}

func (s *server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Listen(s.addr) }()

	s.log.Infof("listening on %s", s.addr)

	select {
	case err := <-errCh:
		return errors.WrapFailf(err, "listen %s", s.addr)
	case <-ctx.Done():
		return nil
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return errors.WrapFail(s.http.ShutdownWithContext(ctx), "shutdown http server")
}

func (s *server) setupRoutes() {
	s.http.Use(s.bindCoordinator)

	s.http.Post("/members", s.handleJoin)
	s.http.Get("/members", s.handleFindMember)
	s.http.Get("/logs", s.handleFindLog)

	s.http.Post("/orders", s.handlePlaceOrder)
	s.http.Get("/orders", s.handleFindOrder)

	s.http.Get("/scenarios", s.handleListScenarios)
	s.http.Get("/scenarios/:name", s.handleRunScenario)
}

// bindCoordinator gives every request its own transaction coordinator.
func (s *server) bindCoordinator(c *fiber.Ctx) error {
	coordinator := txn.NewCoordinator(s.deps.Provider, s.log)
	c.SetUserContext(txn.NewContext(c.UserContext(), coordinator))
	return c.Next()
}

type joinRequest struct {
	Username string `json:"username"`
	Version  string `json:"version"`
}

func (s *server) handleJoin(c *fiber.Ctx) error {
	var req joinRequest
	err := c.BodyParser(&req)
	if err != nil {
		s.log.Warn(errors.WrapFail(err, "parse join request"))
		return sendError(c, http.StatusBadRequest, "bad json")
	}
	if req.Username == "" {
		return sendError(c, http.StatusBadRequest, "missing required field \"username\"")
	}

	join := s.deps.Members.JoinV1
	switch req.Version {
	case "", "v1":
	case "v2":
		join = s.deps.Members.JoinV2
	default:
		return sendError(c, http.StatusBadRequest, "unknown version "+req.Version)
	}

	m, err := join(c.UserContext(), req.Username)
	switch {
	case errors.Is(err, txn.ErrUnexpectedRollback):
		return sendError(c, http.StatusConflict, err.Error())
	case errors.Is(err, member.ErrLogFailure):
		return sendError(c, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		return errors.WrapFail(err, "join member")
	}

	return c.Status(http.StatusCreated).JSON(m)
}

func (s *server) handleFindMember(c *fiber.Ctx) error {
	username, err := getQueryOrErr(c, "username")
	if err != nil {
		return err
	}

	m, found, err := s.deps.Members.FindMember(c.UserContext(), username)
	if err != nil {
		return errors.WrapFail(err, "find member")
	}
	return sendFound(c, m, found)
}

func (s *server) handleFindLog(c *fiber.Ctx) error {
	message, err := getQueryOrErr(c, "message")
	if err != nil {
		return err
	}

	l, found, err := s.deps.Members.FindLog(c.UserContext(), message)
	if err != nil {
		return errors.WrapFail(err, "find log")
	}
	return sendFound(c, l, found)
}

type orderRequest struct {
	Username string `json:"username"`
}

func (s *server) handlePlaceOrder(c *fiber.Ctx) error {
	var req orderRequest
	err := c.BodyParser(&req)
	if err != nil || req.Username == "" {
		return sendError(c, http.StatusBadRequest, "bad order request")
	}

	o, err := s.deps.Orders.Place(c.UserContext(), req.Username)
	switch {
	case errors.Is(err, order.ErrNotEnoughMoney):
		return c.Status(http.StatusPaymentRequired).JSON(o)
	case err != nil:
		return errors.WrapFail(err, "place order")
	}

	return c.Status(http.StatusCreated).JSON(o)
}

func (s *server) handleFindOrder(c *fiber.Ctx) error {
	id, err := getQueryOrErr(c, "id")
	if err != nil {
		return err
	}

	o, found, err := s.deps.Orders.Find(c.UserContext(), id)
	if err != nil {
		return errors.WrapFail(err, "find order")
	}
	return sendFound(c, o, found)
}

func (s *server) handleListScenarios(c *fiber.Ctx) error {
	return c.JSON(scenario.Names())
}

func (s *server) handleRunScenario(c *fiber.Ctx) error {
	report, err := s.deps.Scenarios.Run(c.UserContext(), c.Params("name"))
	if errors.Is(err, scenario.ErrUnknownScenario) {
		return sendError(c, http.StatusNotFound, err.Error())
	}
	if err != nil {
		return errors.WrapFail(err, "run scenario")
	}

	return c.JSON(report)
}

func sendError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(map[string]string{"status": "ERROR", "message": msg})
}

func sendFound(c *fiber.Ctx, item any, found bool) error {
	if !found {
		return sendError(c, http.StatusNotFound, repo.ErrNotFound.Error())
	}
	return c.JSON(item)
}

func getQueryOrErr(c *fiber.Ctx, name string) (string, error) {
	value := c.Query(name, "")
	if value == "" {
		return "", fiber.NewError(http.StatusBadRequest, "missing required parameter \""+name+"\"")
	}
	return value, nil
}
