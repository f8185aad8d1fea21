// Package api serves the diagnostics HTTP surface: book snapshots, prices,
// the live quote stream and Prometheus metrics.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nexfin/exchange-core/internal/engine/book"
	"github.com/nexfin/exchange-core/internal/marketdata"
)

// Server is the HTTP diagnostics server.
type Server struct {
	logger *zap.Logger
	books  *book.Manager
	feed   *marketdata.Feed
	http   *http.Server
}

// NewServer creates the server with its routes registered.
func NewServer(addr string, logger *zap.Logger, books *book.Manager, feed *marketdata.Feed) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		logger: logger,
		books:  books,
		feed:   feed,
		http:   &http.Server{Addr: addr, Handler: router},
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/books", s.listBooks)
		v1.GET("/books/:symbol", s.bookSnapshot)
		v1.GET("/books/:symbol/price", s.lastTradedPrice)
		v1.GET("/quotes/stream", s.streamQuotes)
	}
	return s
}

// Start serves until the listener fails.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listBooks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": s.books.Symbols()})
}

func (s *Server) bookSnapshot(c *gin.Context) {
	b, ok := s.books.Lookup(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	c.JSON(http.StatusOK, b.Snapshot())
}

func (s *Server) lastTradedPrice(c *gin.Context) {
	b, ok := s.books.Lookup(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}
	price := b.LastTradedPrice()
	if price.IsZero() {
		c.JSON(http.StatusOK, gin.H{"symbol": b.Symbol(), "last_traded_price": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": b.Symbol(), "last_traded_price": price})
}

// streamQuotes pushes feed quotes to the client as server-sent events.
func (s *Server) streamQuotes(c *gin.Context) {
	if s.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market data feed disabled"})
		return
	}
	quotes, cancel := s.feed.Subscribe()
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case quote, ok := <-quotes:
			if !ok {
				return false
			}
			c.SSEvent("quote", quote)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
