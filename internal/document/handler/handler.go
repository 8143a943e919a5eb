package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docrev/docrev/internal/archive"
	"github.com/docrev/docrev/internal/document"
	"github.com/docrev/docrev/internal/document/service"
)

// RegisterDocumentRoutes mounts the revisioned CRUD endpoints. archiveStore
// may be nil; the archive endpoint then reports the feature as unavailable.
func RegisterDocumentRoutes(r *gin.Engine, svc *service.Service, archiveStore *archive.Store) {
	r.GET("/api/documents", func(c *gin.Context) {
		q, err := queryFromParams(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := svc.Find(c.Request.Context(), q)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var data document.Document
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		doc, err := svc.Create(c.Request.Context(), data)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		doc, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// the one history-inclusive read
	r.GET("/api/documents/:id/history", func(c *gin.Context) {
		doc, err := svc.GetWithHistory(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	r.PUT("/api/documents/:id", func(c *gin.Context) {
		var payload any
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		doc, err := svc.Update(c.Request.Context(), c.Param("id"), payload)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	r.PATCH("/api/documents/:id", func(c *gin.Context) {
		var data document.Document
		if err := c.ShouldBindJSON(&data); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		doc, err := svc.Patch(c.Request.Context(), c.Param("id"), data)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/api/documents/:id/archive", func(c *gin.Context) {
		if archiveStore == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "archive storage is not configured"})
			return
		}
		id := c.Param("id")
		doc, err := svc.GetWithHistory(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		key, err := archiveStore.PutExport(c.Request.Context(), id, doc)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "archive upload failed: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": key})
	})
}

// queryFromParams maps the request's query string onto an engine query.
// $limit/$skip/$select/$sort are control parameters; every other parameter
// becomes an equality filter term.
func queryFromParams(c *gin.Context) (service.Query, error) {
	q := service.Query{Filter: document.Document{}}
	for key, values := range c.Request.URL.Query() {
		if len(values) == 0 {
			continue
		}
		v := values[0]
		switch key {
		case "$limit":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return q, errors.New("$limit must be an integer")
			}
			q.Limit = n
		case "$skip":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return q, errors.New("$skip must be an integer")
			}
			q.Skip = n
		case "$select":
			for _, f := range strings.Split(v, ",") {
				if f = strings.TrimSpace(f); f != "" {
					q.Select = append(q.Select, f)
				}
			}
		case "$sort":
			q.Sort = map[string]int{}
			for _, f := range strings.Split(v, ",") {
				f = strings.TrimSpace(f)
				if f == "" {
					continue
				}
				if strings.HasPrefix(f, "-") {
					q.Sort[f[1:]] = -1
				} else {
					q.Sort[f] = 1
				}
			}
		default:
			q.Filter[key] = v
		}
	}
	return q, nil
}

// writeError maps engine errors onto HTTP statuses. Store/transport errors
// fall through as 500s without leaking internals.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrMissingRevision):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
