package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"velora-storefront/internal/handler"
	"velora-storefront/internal/middleware"
	"velora-storefront/internal/service"
)

type Server struct {
	echo           *echo.Echo
	cartHandler    *handler.CartHandler
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
	productHandler *handler.ProductHandler
	jwtSecret      string
}

func NewServer(
	cartService service.CartService,
	orderService service.OrderService,
	paymentService service.PaymentService,
	productHandler *handler.ProductHandler,
	jwtSecret string,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:           e,
		cartHandler:    handler.NewCartHandler(cartService),
		orderHandler:   handler.NewOrderHandler(orderService),
		paymentHandler: handler.NewPaymentHandler(paymentService),
		productHandler: productHandler,
		jwtSecret:      jwtSecret,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// browser redirect from the payment provider; signature-checked, not
	// token-authenticated
	s.echo.GET("/payment/payment-return", s.paymentHandler.PaymentReturn)

	api := s.echo.Group("", middleware.Auth(s.jwtSecret))

	// -------- cart --------
	api.GET("/cart", s.cartHandler.GetCart)
	api.POST("/cart", s.cartHandler.AddLine)
	api.PUT("/cart/:lineId", s.cartHandler.UpdateLine)
	api.DELETE("/cart/:lineId", s.cartHandler.RemoveLine)
	api.DELETE("/cart", s.cartHandler.ClearCart)

	// -------- catalog --------
	api.GET("/products/:id/attributes", s.productHandler.GetAttributes)

	// -------- orders --------
	api.POST("/orders", s.orderHandler.PlaceOrder)
	api.GET("/orders", s.orderHandler.ListOrders)
	api.GET("/orders/:id", s.orderHandler.GetOrder)
	api.PUT("/orders/:id/cancel", s.orderHandler.CancelOrder)

	// -------- payment --------
	api.POST("/payment/create-payment-url", s.paymentHandler.CreatePaymentURL)
}

// Echo exposes the underlying router, used by tests to mount the server in
// an httptest.Server.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
