package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/avoronin/cineseat/internal/domain"
	"github.com/avoronin/cineseat/internal/repository"
	redisrepo "github.com/avoronin/cineseat/internal/repository/redis"
	"github.com/avoronin/cineseat/internal/service"
	"github.com/avoronin/cineseat/internal/service/catalog"
	"github.com/avoronin/cineseat/internal/service/holds"
	"github.com/avoronin/cineseat/internal/service/settlement"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	limiter *redisrepo.SlidingWindowLimiter,
	adminToken string,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/movies", handleListMovies(svcs))
	r.GET("/movies/:imdb_id/shows", handleMovieShows(svcs))
	r.GET("/shows/:id", handleGetShow(svcs))
	r.GET("/shows/:id/availability", handleGetAvailability(svcs))
	r.GET("/shows/:id/seats", handleListShowSeats(svcs))

	// Booking API, caller identified via X-User-ID
	user := r.Group("/", IdentityMiddleware())
	{
		user.POST("/drafts", RateLimitMiddleware(limiter), handleCreateDraft(svcs, idem))
		user.DELETE("/drafts/:id", handleDeleteDraft(svcs))
		user.POST("/drafts/:id/confirm", handleConfirmDraft(svcs))
		user.POST("/bookings/:id/cancel", handleCancelBooking(svcs))
		user.GET("/bookings", handleListBookings(svcs))
		user.POST("/balance/refill", handleRefillBalance(svcs))
	}

	// Admin API
	admin := r.Group("/admin", AdminMiddleware(adminToken))
	{
		admin.POST("/movies", handleAddMovie(svcs))
		admin.DELETE("/movies/:imdb_id", handleDeleteMovie(svcs))
		admin.POST("/screens", handleAddScreen(svcs))
		admin.POST("/shows", handleAddShow(svcs))
		admin.DELETE("/shows/:id", handleDeleteShow(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  List movies
// @Param    limit  query  int  false "page size"
// @Param    offset query  int  false "offset"
// @Success  200  {array}  domain.Movie
// @Router   /movies [get]
func handleListMovies(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 100)
		offset := parseIntDefault(c.Query("offset"), 0)

		movies, err := svcs.Query.ListMovies(c.Request.Context(), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, movies, "public, max-age=60", true)
	}
}

// @Summary  List a movie's shows
// @Param    imdb_id  path  string  true  "IMDB ID"
// @Success  200  {array}  domain.Show
// @Router   /movies/{imdb_id}/shows [get]
func handleMovieShows(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		shows, err := svcs.Query.MovieShows(c.Request.Context(), c.Param("imdb_id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, shows, "public, max-age=60", true)
	}
}

// @Summary  Get show
// @Param    id  path  int  true  "Show ID"
// @Success  200  {object}  domain.Show
// @Failure  404  {object}  ErrorResponse
// @Router   /shows/{id} [get]
func handleGetShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		show, err := svcs.Query.GetShow(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, show, "public, max-age=60", true)
	}
}

// @Summary  Get availability counters
// @Param    id  path  int  true  "Show ID"
// @Success  200  {object}  domain.ShowCounts
// @Router   /shows/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		cnt, err := svcs.Query.Availability(c.Request.Context(), showID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, cnt, "public, max-age=15", true)
	}
}

// @Summary  List show seats
// @Param    id     path   int     true  "Show ID"
// @Param    only   query  string  false "available"
// @Param    limit  query  int     false "page size"
// @Param    offset query  int     false "offset"
// @Success  200  {array}   domain.Seat
// @Router   /shows/{id}/seats [get]
func handleListShowSeats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		onlyAvailable := false
		if c.Query("only") == "available" ||
			c.Query("only_available") == "true" ||
			c.Query("onlyAvailable") == "true" {
			onlyAvailable = true
		}
		limit := parseIntDefault(c.Query("limit"), 0)
		offset := parseIntDefault(c.Query("offset"), 0)

		seats, err := svcs.Query.ListShowSeats(
			c.Request.Context(),
			showID,
			onlyAvailable,
			limit,
			offset,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, seats, "public, max-age=15", true)
	}
}

// @Summary  Create draft booking (idempotent)
// @Param    req body  CreateDraftRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateDraftResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "seats unavailable / draft exists / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /drafts [post]
func handleCreateDraft(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		var req CreateDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		seatIDs, err := parseSeatIDs(req.SeatIDs)
		if err != nil {
			badRequest(c, "invalid seat id")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemDraft(req.ShowID, idemKey)

			if payload, ok, _ := idem.GetResult(
				c.Request.Context(),
				idemStorageKey,
			); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(
					http.StatusCreated,
					"application/json; charset=utf-8",
					[]byte(payload),
				)
				return
			}

			locked, err := idem.AcquireLock(
				c.Request.Context(),
				idemStorageKey,
				60*time.Second,
			)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(
					c.Request.Context(),
					idemStorageKey,
				); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(
						http.StatusCreated,
						"application/json; charset=utf-8",
						[]byte(payload),
					)
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(
					http.StatusConflict,
					ErrorResponse{Error: "idempotency key in progress"},
				)
				return
			}
		}

		draft, err := svcs.Holds.CreateDraft(
			c.Request.Context(),
			uid,
			req.ShowID,
			seatIDs,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateDraftResponse{DraftID: draft.ID}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Delete draft booking
// @Param    id  path  string  true  "Draft ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Router   /drafts/{id} [delete]
func handleDeleteDraft(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		if err := svcs.Holds.DeleteDraft(c.Request.Context(), uid, c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Confirm draft into a booking
// @Param    id  path  string  true  "Draft ID"
// @Success  201 {object} ConfirmDraftResponse
// @Failure  400 {object} ErrorResponse "insufficient balance"
// @Failure  409 {object} ErrorResponse "draft no longer holds its seats"
// @Router   /drafts/{id}/confirm [post]
func handleConfirmDraft(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		booking, err := svcs.Settlement.Confirm(c.Request.Context(), uid, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, ConfirmDraftResponse{
			BookingID:   booking.ID,
			TotalAmount: booking.TotalAmount,
		})
	}
}

// @Summary  Cancel booking
// @Param    id  path  string  true  "Booking ID"
// @Success  200 {object} CancelBookingResponse
// @Failure  400 {object} ErrorResponse "too late to cancel"
// @Failure  404 {object} ErrorResponse
// @Router   /bookings/{id}/cancel [post]
func handleCancelBooking(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		refund, err := svcs.Settlement.Cancel(c.Request.Context(), uid, c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CancelBookingResponse{RefundAmount: refund})
	}
}

// @Summary  List the caller's bookings
// @Success  200 {array} domain.HistoryEntry
// @Router   /bookings [get]
func handleListBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		entries, err := svcs.Query.UserBookings(c.Request.Context(), uid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// @Summary  Refill balance to the default amount
// @Success  200 {object} RefillBalanceResponse
// @Router   /balance/refill [post]
func handleRefillBalance(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
			return
		}
		balance, err := svcs.Settlement.Refill(c.Request.Context(), uid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, RefillBalanceResponse{Balance: balance})
	}
}

// @Summary  Add movie
// @Param    req body  AddMovieRequest true "payload"
// @Success  201 {object} AddMovieResponse
// @Router   /admin/movies [post]
func handleAddMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddMovieRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Catalog.AddMovie(c.Request.Context(), domain.Movie{
			ImdbID:      req.ImdbID,
			Title:       req.Title,
			Description: req.Description,
			DurationMin: req.DurationMin,
			Language:    req.Language,
			PosterURL:   req.PosterURL,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, AddMovieResponse{MovieID: id})
	}
}

// @Summary  Delete movie
// @Param    imdb_id  path  string  true  "IMDB ID"
// @Success  204
// @Router   /admin/movies/{imdb_id} [delete]
func handleDeleteMovie(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svcs.Catalog.DeleteMovie(c.Request.Context(), c.Param("imdb_id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Add screen with its seat layout
// @Param    req body  AddScreenRequest true "payload"
// @Success  201 {object} map[string]int
// @Router   /admin/screens [post]
func handleAddScreen(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddScreenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Catalog.AddScreen(c.Request.Context(), req.Number, req.Layout); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"number": req.Number})
	}
}

// @Summary  Schedule show and materialize seats
// @Param    req body  AddShowRequest true "payload"
// @Success  201 {object} AddShowResponse
// @Failure  400 {object} ErrorResponse "past start time / overlap"
// @Router   /admin/shows [post]
func handleAddShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddShowRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		starts, err := parseRFC3339(req.StartsAt)
		if err != nil {
			badRequest(c, "invalid starts_at (RFC3339)")
			return
		}
		id, err := svcs.Catalog.AddShow(c.Request.Context(), catalog.AddShowInput{
			ImdbID:       req.ImdbID,
			ScreenNumber: req.ScreenNumber,
			StartsAt:     starts,
			BasePrice:    req.BasePrice,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, AddShowResponse{ShowID: id})
	}
}

// @Summary  Delete show and everything attached to it
// @Param    id  path  int  true  "Show ID"
// @Success  204
// @Router   /admin/shows/{id} [delete]
func handleDeleteShow(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		showID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		if err := svcs.Catalog.DeleteShow(c.Request.Context(), showID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseSeatIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// holds service
	case errors.Is(err, holds.ErrShowNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "show not found"})
		return
	case errors.Is(err, holds.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "draft not found"})
		return
	case errors.Is(err, holds.ErrDraftConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already has a pending draft"})
		return
	case errors.Is(err, holds.ErrSeatsUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seats unavailable"})
		return
	case errors.Is(err, holds.ErrNoSeatsSelected):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no seats selected"})
		return
	case errors.Is(err, holds.ErrNotOwner), errors.Is(err, settlement.ErrNotOwner):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
		return
	// settlement service
	case errors.Is(err, settlement.ErrDraftNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "draft not found"})
		return
	case errors.Is(err, settlement.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "booking not found"})
		return
	case errors.Is(err, settlement.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	case errors.Is(err, settlement.ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "insufficient balance"})
		return
	case errors.Is(err, settlement.ErrTooLateToCancel):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "too late to cancel"})
		return
	case errors.Is(err, settlement.ErrDraftExpired):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "draft no longer holds its seats"})
		return
	// catalog service
	case errors.Is(err, catalog.ErrMovieNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "movie not found"})
		return
	case errors.Is(err, catalog.ErrScreenNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "screen not found"})
		return
	case errors.Is(err, catalog.ErrShowNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "show not found"})
		return
	case errors.Is(err, catalog.ErrMovieExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "movie already exists"})
		return
	case errors.Is(err, catalog.ErrScreenExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "screen already exists"})
		return
	case errors.Is(err, catalog.ErrShowInPast):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "show time is in the past"})
		return
	case errors.Is(err, catalog.ErrShowOverlap):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "this show overlaps with another show"})
		return
	case errors.Is(err, catalog.ErrBadLayout):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid screen layout"})
		return
	// repository
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
