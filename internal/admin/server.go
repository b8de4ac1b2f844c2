package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wifiobd/shopbot/internal/models"
	"github.com/wifiobd/shopbot/internal/order"
	"github.com/wifiobd/shopbot/internal/support"
	"github.com/wifiobd/shopbot/internal/user"
)

// Notifier отправляет сообщение пользователю в Telegram.
// Реализация — bot.Bot.
type Notifier interface {
	Notify(userID int64, text string)
}

type Server struct {
	orders       *order.Service
	reconciler   *order.Reconciler
	users        *user.Service
	support      *support.Service
	notifier     Notifier
	jwtSecret    []byte
	passwordHash string
	log          *slog.Logger
}

func NewServer(orders *order.Service, rec *order.Reconciler, users *user.Service, sup *support.Service, notifier Notifier, jwtSecret []byte, passwordHash string, log *slog.Logger) *Server {
	return &Server{
		orders:       orders,
		reconciler:   rec,
		users:        users,
		support:      sup,
		notifier:     notifier,
		jwtSecret:    jwtSecret,
		passwordHash: passwordHash,
		log:          log,
	}
}

func Register(e *echo.Echo, s *Server) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/login", s.Login)

	api := e.Group("/api")
	api.Use(s.RequireAuth)

	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.PATCH("/orders/:id/status", s.UpdateOrderStatus)
	api.POST("/orders/:id/refund", s.RefundOrder)

	api.GET("/users", s.ListUsers)

	api.GET("/tickets", s.ListTickets)
	api.POST("/tickets/:id/answer", s.AnswerTicket)
	api.POST("/tickets/:id/close", s.CloseTicket)

	api.POST("/broadcast", s.Broadcast)
}

func paramID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "некорректный id")
	}
	return uint(id), nil
}

func (s *Server) ListOrders(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		orders []models.Order
		err    error
	)
	if c.QueryParam("status") == string(models.OrderPending) {
		orders, err = s.orders.Pending(c.Request().Context())
	} else {
		orders, err = s.orders.Recent(c.Request().Context(), limit)
	}
	if err != nil {
		s.log.Error("не удалось загрузить заказы", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "ошибка загрузки заказов")
	}
	return c.JSON(http.StatusOK, orders)
}

func (s *Server) GetOrder(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	ord, err := s.orders.GetWithUser(c.Request().Context(), id)
	if errors.Is(err, order.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "заказ не найден")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ошибка загрузки заказа")
	}
	return c.JSON(http.StatusOK, ord)
}

type statusRequest struct {
	Status models.OrderStatus `json:"status"`
}

func (s *Server) UpdateOrderStatus(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "некорректный запрос")
	}

	updated, err := s.orders.UpdateStatus(c.Request().Context(), id, req.Status)
	if errors.Is(err, order.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "заказ не найден")
	}
	if errors.Is(err, order.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "недопустимый переход статуса")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "не удалось сменить статус")
	}

	if s.notifier != nil {
		s.notifier.Notify(updated.UserID, "Заказ №"+strconv.FormatUint(uint64(updated.ID), 10)+": "+string(updated.Status))
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) RefundOrder(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if err := s.reconciler.Refund(c.Request().Context(), id); err != nil {
		if errors.Is(err, order.ErrConflict) || errors.Is(err, order.ErrNoPayment) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "заказ не найден")
		}
		s.log.Error("не удалось оформить возврат", "order_id", id, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "ошибка платёжного шлюза")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) ListUsers(c echo.Context) error {
	users, err := s.users.List(c.Request().Context(), 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ошибка загрузки пользователей")
	}
	return c.JSON(http.StatusOK, users)
}

func (s *Server) ListTickets(c echo.Context) error {
	tickets, err := s.support.Open(c.Request().Context(), 100)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ошибка загрузки обращений")
	}
	return c.JSON(http.StatusOK, tickets)
}

type answerRequest struct {
	Response string `json:"response"`
}

func (s *Server) AnswerTicket(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "некорректный запрос")
	}

	ticket, err := s.support.Answer(c.Request().Context(), id, req.Response)
	if errors.Is(err, support.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "обращение не найдено")
	}
	if errors.Is(err, support.ErrClosed) || errors.Is(err, support.ErrEmptyMessage) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "не удалось сохранить ответ")
	}

	if s.notifier != nil {
		s.notifier.Notify(ticket.UserID, "💬 Ответ поддержки:\n\n"+req.Response)
	}
	return c.JSON(http.StatusOK, ticket)
}

func (s *Server) CloseTicket(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	if err := s.support.Close(c.Request().Context(), id); err != nil {
		if errors.Is(err, support.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "обращение не найдено")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "не удалось закрыть обращение")
	}
	return c.NoContent(http.StatusNoContent)
}

type broadcastRequest struct {
	Text string `json:"text"`
}

// Broadcast рассылает сообщение всем активным пользователям.
func (s *Server) Broadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "пустой текст рассылки")
	}

	users, err := s.users.List(c.Request().Context(), 10000)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ошибка загрузки пользователей")
	}

	sent := 0
	if s.notifier != nil {
		for _, u := range users {
			if !u.IsActive {
				continue
			}
			s.notifier.Notify(u.ID, req.Text)
			sent++
		}
	}

	s.log.Info("рассылка отправлена", "recipients", sent)
	return c.JSON(http.StatusOK, map[string]int{"sent": sent})
}
