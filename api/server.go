package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MixinNetwork/allowance/ledger"
	"github.com/MixinNetwork/mixin/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	HeaderActor = "X-Actor-Id"
	HeaderValue = "X-Attached-Value"

	contextCall = "ledger.call"
)

// Server exposes the ledger over JSON. The caller identity and the native
// value attached to a call are set by the authenticating proxy in front of
// it, the server trusts both headers.
type Server struct {
	ledger   *ledger.Ledger
	engine   *gin.Engine
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewServer(l *ledger.Ledger) *Server {
	s := &Server{
		ledger:   l,
		engine:   gin.New(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allowance_api_requests_total",
			Help: "Requests served by route and status code.",
		}, []string{"route", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allowance_ledger_failures_total",
			Help: "Aborted ledger operations by reason.",
		}, []string{"reason", "class"}),
	}
	s.registry.MustRegister(s.requests, s.failures)

	s.engine.Use(gin.Recovery(), s.instrument)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.engine.Group("/", s.identify)
	v1.POST("/approvals", s.approveBalances)
	v1.POST("/approvals/claim", s.transferBalancesFrom)
	v1.GET("/approvals", s.allowancesForSpender)
	v1.GET("/approvals/:owner/native", s.spenderNativeAllowance)
	v1.GET("/approvals/:owner/token", s.spenderTokenAllowance)
	v1.POST("/grants", s.mintApproveNft)
	v1.POST("/grants/claim", s.transferNftFrom)
	v1.GET("/grants", s.grantsForOwner)
	v1.GET("/grants/:owner/token", s.spenderNftAllowance)
	v1.POST("/registry", s.addContractAddress)
	v1.GET("/registry", s.readRegistry)
	v1.POST("/minters", s.addAuthorizedMinter)
	v1.GET("/roles", s.readRoles)
	v1.GET("/events", s.listEvents)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{Addr: listen, Handler: s.engine}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		if err != nil {
			logger.Printf("api.Shutdown() => %v\n", err)
		}
	}()
	logger.Printf("api.Run(%s)\n", listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) instrument(c *gin.Context) {
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	s.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
}

func (s *Server) identify(c *gin.Context) {
	caller := c.GetHeader(HeaderActor)
	if caller == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderActor})
		return
	}
	value, err := ledger.ParseAmount(c.GetHeader(HeaderValue), ledger.NativeBits)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Set(contextCall, &ledger.Call{Caller: caller, Value: value})
	c.Next()
}

func callOf(c *gin.Context) *ledger.Call {
	return c.MustGet(contextCall).(*ledger.Call)
}

func (s *Server) renderError(c *gin.Context, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		logger.Printf("api %s => %v\n", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	s.failures.WithLabelValues(le.Reason.String(), le.Class().String()).Inc()
	c.JSON(statusOf(le.Class()), gin.H{
		"error":  le.Reason.String(),
		"class":  le.Class().String(),
		"detail": le.Detail,
	})
}

func statusOf(class ledger.Class) int {
	switch class {
	case ledger.ClassAuthorization:
		return http.StatusForbidden
	case ledger.ClassDuplicate, ledger.ClassConflict:
		return http.StatusConflict
	case ledger.ClassNotFound:
		return http.StatusNotFound
	case ledger.ClassInsufficientFunds:
		return http.StatusUnprocessableEntity
	case ledger.ClassGateNotSatisfied:
		return http.StatusPreconditionFailed
	case ledger.ClassTransactionDispatch:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
