// Package server exposes the import, export, sync, tag and search
// operations over HTTP.
package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/importer"
	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/syncer"
	"github.com/nikbrunner/anchormarks/internal/tags"
)

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store      *storage.SQLiteStorage
	Importer   *importer.Importer
	Reconciler *syncer.Reconciler
	Tags       *tags.Normalizer
	Logger     logrus.FieldLogger
	AuthToken  string
	APIKeys    map[string]string // key -> user
}

func NewRouter(deps Deps) *gin.Engine {
	log := logging.OrDiscard(deps.Logger)
	h := &Handler{
		store:      deps.Store,
		importer:   deps.Importer,
		reconciler: deps.Reconciler,
		tags:       deps.Tags,
		log:        log,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-User-ID", "X-API-Key"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(Auth(deps.AuthToken, deps.APIKeys))
	{
		api.POST("/import/html", h.ImportHTML)
		api.POST("/import/json", h.ImportJSON)
		api.GET("/export", h.Export)

		api.POST("/sync/push", h.SyncPush)
		api.GET("/sync/pull", h.SyncPull)

		api.POST("/tags/rename", h.RenameTag)
		api.POST("/tags/merge", h.MergeTags)
		api.POST("/tags/bulk-add", h.BulkAddTags)
		api.POST("/tags/bulk-remove", h.BulkRemoveTags)

		api.GET("/search", h.Search)
		api.GET("/quick-search", h.Search)
		api.POST("/bookmarks/:id/click", h.Click)
	}
	return r
}
