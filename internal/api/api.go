// Package api implements the HTTP handlers of the objects collection.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/celerix-dev/celerix-objects/internal/engine"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Messages returned in the error envelope.
const (
	MsgInvalidCreateAttribute = "Invalid attribute 'uid' or '_id' in request"
	MsgInvalidPutAttribute    = "Invalid attribute '_id' in request"
	MsgIDMismatch             = "Id mismatch in body and url"
	MsgObjectNotFound         = "Object not found"
	MsgUnableToPost           = "Unable to POST object"
	MsgUnableToInsert         = "Unable to insert object"
	MsgInvalidID              = "Invalid Id"
	MsgInternal               = "Internal server error"
	MsgMalformedJSON          = "Malformed JSON"
	MsgNotFound               = "Not Found"
	MsgUnavailable            = "Service unavailable"
)

// ObjectStore is the storage contract the handlers depend on.
// *engine.Store implements it.
type ObjectStore interface {
	FindOne(ctx context.Context, uid string) (engine.Resource, error)
	InsertOne(ctx context.Context, r engine.Resource) (string, error)
	ListIDs(ctx context.Context) ([]string, error)
	PutOne(ctx context.Context, r engine.Resource) (engine.Resource, error)
	DeleteOne(ctx context.Context, uid string) error
	Ping(ctx context.Context) error
}

type Handler struct {
	Store ObjectStore
}

// Locator is one entry of the list response.
type Locator struct {
	URL string `json:"url"`
}

// Create inserts the request body as a new object and returns it with its uid.
func (h *Handler) Create(c *gin.Context) {
	body := requestBody(c)
	if body.Has(engine.FieldUID) || body.Has(engine.FieldInternalID) {
		writeError(c, http.StatusBadRequest, MsgInvalidCreateAttribute)
		return
	}

	ctx := c.Request.Context()
	uid, err := h.Store.InsertOne(ctx, body)
	if err != nil {
		zerolog.Ctx(ctx).Error().Stack().Err(err).Msg("insert failed")
		if errors.Is(err, engine.ErrConnection) {
			writeError(c, http.StatusInternalServerError, MsgInternal)
			return
		}
		writeError(c, http.StatusInternalServerError, MsgUnableToInsert)
		return
	}

	doc, err := h.Store.FindOne(ctx, uid)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("uid", uid).Msg("reading back inserted object")
		writeError(c, http.StatusBadRequest, MsgUnableToPost)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// GetOne returns a single object.
func (h *Handler) GetOne(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.Store.FindOne(ctx, c.Param("uid"))
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidIdentifier), errors.Is(err, engine.ErrNotFound):
			writeError(c, http.StatusNotFound, MsgObjectNotFound)
		default:
			zerolog.Ctx(ctx).Error().Stack().Err(err).Msg("find failed")
			writeError(c, http.StatusInternalServerError, MsgInternal)
		}
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetAll returns a locator for every stored object.
func (h *Handler) GetAll(c *gin.Context) {
	ctx := c.Request.Context()
	uids, err := h.Store.ListIDs(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Stack().Err(err).Msg("list failed")
		writeError(c, http.StatusInternalServerError, MsgInternal)
		return
	}

	base := origin(c.Request) + strings.TrimSuffix(c.Request.URL.Path, "/") + "/"
	out := make([]Locator, 0, len(uids))
	for _, uid := range uids {
		out = append(out, Locator{URL: base + uid})
	}
	c.JSON(http.StatusOK, out)
}

// Update replaces an object. The body must repeat the uid of the path.
func (h *Handler) Update(c *gin.Context) {
	body := requestBody(c)
	if body.Has(engine.FieldInternalID) {
		writeError(c, http.StatusBadRequest, MsgInvalidPutAttribute)
		return
	}
	if uid, ok := body[engine.FieldUID].(string); !ok || uid != c.Param("uid") {
		writeError(c, http.StatusBadRequest, MsgIDMismatch)
		return
	}

	ctx := c.Request.Context()
	doc, err := h.Store.PutOne(ctx, body)
	if err != nil {
		if errors.Is(err, engine.ErrConnection) {
			zerolog.Ctx(ctx).Error().Stack().Err(err).Msg("replace failed")
			writeError(c, http.StatusInternalServerError, MsgInternal)
			return
		}
		zerolog.Ctx(ctx).Debug().Err(err).Msg("replace rejected")
		writeError(c, http.StatusBadRequest, MsgObjectNotFound)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete removes an object. Deleting an absent object succeeds.
func (h *Handler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.Store.DeleteOne(ctx, c.Param("uid")); err != nil {
		if errors.Is(err, engine.ErrConnection) {
			zerolog.Ctx(ctx).Error().Stack().Err(err).Msg("delete failed")
			writeError(c, http.StatusInternalServerError, MsgInternal)
			return
		}
		writeError(c, http.StatusBadRequest, MsgInvalidID)
		return
	}
	c.Status(http.StatusOK)
}

// Health reports whether a store connection can be acquired.
func (h *Handler) Health(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Msg("health check failed")
		writeError(c, http.StatusServiceUnavailable, MsgUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NotFound answers every unknown route.
func NotFound(c *gin.Context) {
	writeError(c, http.StatusNotFound, MsgNotFound)
}
