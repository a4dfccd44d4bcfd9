package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hazemadel/carmarket-service/internal/model"
	"github.com/hazemadel/carmarket-service/internal/repo"
	"github.com/hazemadel/carmarket-service/internal/service"
	"github.com/shopspring/decimal"
)

// Services bundles the service layer for route registration.
type Services struct {
	Listings     *service.ListingService
	Status       *service.ListingStatusService
	Governorates *service.GovernorateService
	Favorites    *service.FavoriteService
	Media        *service.MediaService
}

func RegisterHandlers(r *gin.Engine, svcs Services, jwtSecret string) {
	v1 := r.Group("/v1")
	{
		v1.GET("/listings", searchListingsHandler(svcs.Listings))
		v1.GET("/listings/:id", getListingHandler(svcs.Listings))
		v1.GET("/governorates", listGovernoratesHandler(svcs.Governorates))
		v1.GET("/governorates/:id", getGovernorateHandler(svcs.Governorates))
	}

	auth := v1.Group("", AuthMiddleware(jwtSecret))
	{
		auth.POST("/listings", createListingHandler(svcs.Listings))
		auth.PUT("/listings/:id", updateListingHandler(svcs.Listings))
		auth.DELETE("/listings/:id", deleteListingHandler(svcs.Listings))
		auth.POST("/listings/:id/photos", uploadPhotoHandler(svcs.Media))

		auth.POST("/listings/:id/pause", transitionHandler(svcs.Status.Pause))
		auth.POST("/listings/:id/resume", transitionHandler(svcs.Status.Resume))
		auth.POST("/listings/:id/sold", transitionHandler(svcs.Status.MarkSold))
		auth.POST("/listings/:id/archive", transitionHandler(svcs.Status.Archive))
		auth.POST("/listings/:id/unarchive", transitionHandler(svcs.Status.Unarchive))

		auth.POST("/users/me/favorites/:id", addFavoriteHandler(svcs.Favorites))
		auth.DELETE("/users/me/favorites/:id", removeFavoriteHandler(svcs.Favorites))
		auth.GET("/users/me/favorites", listFavoritesHandler(svcs.Favorites))
	}

	admin := v1.Group("/admin", AuthMiddleware(jwtSecret), AdminOnly())
	{
		admin.POST("/listings/:id/approve", approveHandler(svcs.Status))
		admin.POST("/listings/:id/sold", adminTransitionHandler(svcs.Status.MarkSold))
		admin.POST("/listings/:id/archive", adminTransitionHandler(svcs.Status.Archive))
		admin.POST("/listings/:id/unarchive", adminTransitionHandler(svcs.Status.Unarchive))

		admin.POST("/governorates", createGovernorateHandler(svcs.Governorates))
		admin.PUT("/governorates/:id", updateGovernorateHandler(svcs.Governorates))
		admin.DELETE("/governorates/:id", deleteGovernorateHandler(svcs.Governorates))
	}
}

// writeError maps the service error taxonomy onto HTTP statuses:
// NotFound 404, Unauthorized 403, Conflict 409, validation 400.
func writeError(c *gin.Context, err error) {
	var nf *service.NotFoundError
	var ua *service.UnauthorizedError
	var cf *service.ConflictError
	switch {
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &ua):
		c.JSON(http.StatusForbidden, gin.H{"error": ua.Error()})
	case errors.As(err, &cf):
		c.JSON(http.StatusConflict, gin.H{"error": cf.Error()})
	case errors.Is(err, service.ErrInvalidListing), errors.Is(err, service.ErrUnsupportedMedia):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

type transitionFunc func(ctx context.Context, id uint64, actor service.Actor) (*model.Listing, error)

// transitionHandler adapts an owner-scoped status transition to a route.
func transitionHandler(op transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		l, err := op(c, id, service.Owner(c.GetString(ctxUsername)))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListingResponse(l))
	}
}

// adminTransitionHandler runs the same transition with the admin actor and
// returns the admin response shape.
func adminTransitionHandler(op transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		l, err := op(c, id, service.Admin())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toAdminListingResponse(l))
	}
}

func approveHandler(svc *service.ListingStatusService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		l, err := svc.Approve(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toAdminListingResponse(l))
	}
}

type createListingReq struct {
	GovernorateID uint64 `json:"governorate_id" binding:"required"`
	Make          string `json:"make" binding:"required"`
	Model         string `json:"model" binding:"required"`
	Year          int    `json:"year" binding:"required"`
	Mileage       int    `json:"mileage"`
	Price         string `json:"price" binding:"required"`
	Description   string `json:"description"`
}

func createListingHandler(svc *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createListingReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		l, err := svc.Create(c, service.CreateListingInput{
			Username:      c.GetString(ctxUsername),
			GovernorateID: req.GovernorateID,
			Make:          req.Make,
			Model:         req.Model,
			Year:          req.Year,
			Mileage:       req.Mileage,
			Price:         price,
			Description:   req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toListingResponse(l))
	}
}

func getListingHandler(svc *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		l, err := svc.Get(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListingResponse(l))
	}
}

func searchListingsHandler(svc *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := repo.ListingFilter{
			Make:        c.Query("make"),
			Model:       c.Query("model"),
			VisibleOnly: true,
		}
		f.GovernorateID, _ = strconv.ParseUint(c.Query("governorate_id"), 10, 64)
		f.YearMin, _ = strconv.Atoi(c.Query("year_min"))
		f.YearMax, _ = strconv.Atoi(c.Query("year_max"))
		if v := c.Query("price_min"); v != "" {
			f.PriceMin, _ = decimal.NewFromString(v)
		}
		if v := c.Query("price_max"); v != "" {
			f.PriceMax, _ = decimal.NewFromString(v)
		}
		f.IncludeSold = c.Query("include_sold") == "true"
		f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
		f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

		listings, total, err := svc.Search(c, f)
		if err != nil {
			writeError(c, err)
			return
		}
		items := make([]ListingResponse, 0, len(listings))
		for i := range listings {
			items = append(items, toListingResponse(&listings[i]))
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": f.Page})
	}
}

type updateListingReq struct {
	GovernorateID uint64 `json:"governorate_id"`
	Make          string `json:"make" binding:"required"`
	Model         string `json:"model" binding:"required"`
	Year          int    `json:"year" binding:"required"`
	Mileage       int    `json:"mileage"`
	Price         string `json:"price" binding:"required"`
	Description   string `json:"description"`
}

func updateListingHandler(svc *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req updateListingReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		l, err := svc.Update(c, id, service.Owner(c.GetString(ctxUsername)), service.UpdateListingInput{
			GovernorateID: req.GovernorateID,
			Make:          req.Make,
			Model:         req.Model,
			Year:          req.Year,
			Mileage:       req.Mileage,
			Price:         price,
			Description:   req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListingResponse(l))
	}
}

func deleteListingHandler(svc *service.ListingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		actor := service.Owner(c.GetString(ctxUsername))
		if c.GetBool(ctxAdmin) {
			actor = service.Admin()
		}
		if err := svc.Delete(c, id, actor); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func uploadPhotoHandler(svc *service.MediaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing photo file"})
			return
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable photo file"})
			return
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable photo file"})
			return
		}
		l, err := svc.AttachPhoto(c, id, service.Owner(c.GetString(ctxUsername)),
			file.Filename, data, file.Header.Get("Content-Type"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toListingResponse(l))
	}
}

type governorateReq struct {
	Name string `json:"name" binding:"required"`
}

func createGovernorateHandler(svc *service.GovernorateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req governorateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		g, err := svc.Create(c, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toGovernorateResponse(g))
	}
}

func getGovernorateHandler(svc *service.GovernorateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		g, err := svc.Get(c, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toGovernorateResponse(g))
	}
}

func updateGovernorateHandler(svc *service.GovernorateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req governorateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		g, err := svc.Update(c, id, req.Name)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, toGovernorateResponse(g))
	}
}

func deleteGovernorateHandler(svc *service.GovernorateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c, id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listGovernoratesHandler(svc *service.GovernorateService) gin.HandlerFunc {
	return func(c *gin.Context) {
		gs, err := svc.List(c)
		if err != nil {
			writeError(c, err)
			return
		}
		items := make([]GovernorateResponse, 0, len(gs))
		for i := range gs {
			items = append(items, toGovernorateResponse(&gs[i]))
		}
		c.JSON(http.StatusOK, items)
	}
}

func addFavoriteHandler(svc *service.FavoriteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		f, err := svc.Add(c, c.GetString(ctxUsername), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toFavoriteResponse(f))
	}
}

func removeFavoriteHandler(svc *service.FavoriteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := svc.Remove(c, c.GetString(ctxUsername), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listFavoritesHandler(svc *service.FavoriteService) gin.HandlerFunc {
	return func(c *gin.Context) {
		fs, err := svc.List(c, c.GetString(ctxUsername))
		if err != nil {
			writeError(c, err)
			return
		}
		items := make([]FavoriteResponse, 0, len(fs))
		for i := range fs {
			items = append(items, toFavoriteResponse(&fs[i]))
		}
		c.JSON(http.StatusOK, items)
	}
}
