package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/exporter"
	"github.com/nikbrunner/anchormarks/internal/importer"
	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/search"
	"github.com/nikbrunner/anchormarks/internal/storage"
	"github.com/nikbrunner/anchormarks/internal/syncer"
	"github.com/nikbrunner/anchormarks/internal/tags"
)

// maxBodyBytes caps uploads; browser exports of tens of thousands of
// bookmarks stay well below it.
const maxBodyBytes = 32 << 20

type Handler struct {
	store      *storage.SQLiteStorage
	importer   *importer.Importer
	reconciler *syncer.Reconciler
	tags       *tags.Normalizer
	log        logrus.FieldLogger
}

func (h *Handler) ImportHTML(c *gin.Context) {
	userID := UserIDFromContext(c)

	var body io.Reader
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
			return
		}
		defer f.Close()
		body = f
	} else if strings.HasPrefix(strings.ToLower(c.GetHeader("Content-Type")), "text/html") {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	res, err := h.importer.ImportHTML(c.Request.Context(), userID, body)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ImportJSON(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	res, err := h.importer.ImportJSON(c.Request.Context(), UserIDFromContext(c), data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Export(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", exporter.FormatJSON)))
	store, err := h.store.Load(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("anchormarks-export-%s.%s", time.Now().Format("2006-01-02"), format)
	switch format {
	case exporter.FormatHTML:
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(exporter.ExportHTML(store)))
	case exporter.FormatJSON:
		data, err := exporter.ExportJSON(store)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/json; charset=utf-8", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be html or json"})
	}
}

func (h *Handler) SyncPush(c *gin.Context) {
	data, ok := readBody(c)
	if !ok {
		return
	}
	res, err := h.reconciler.PushJSON(c.Request.Context(), UserIDFromContext(c), data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SyncPull(c *gin.Context) {
	store, err := h.reconciler.Pull(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, store)
}

func (h *Handler) RenameTag(c *gin.Context) {
	var body struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	affected, err := h.tags.RenameOrMergeTag(c.Request.Context(), UserIDFromContext(c), body.From, body.To)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

func (h *Handler) MergeTags(c *gin.Context) {
	var body struct {
		Sources []string `json:"sources"`
		Target  string   `json:"target"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	affected, err := h.tags.MergeTags(c.Request.Context(), UserIDFromContext(c), body.Sources, body.Target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

type bulkTagsBody struct {
	BookmarkIDs []string `json:"bookmark_ids"`
	Tags        string   `json:"tags"`
}

func (h *Handler) BulkAddTags(c *gin.Context) {
	h.bulkTags(c, h.tags.BulkAddTags)
}

func (h *Handler) BulkRemoveTags(c *gin.Context) {
	h.bulkTags(c, h.tags.BulkRemoveTags)
}

func (h *Handler) bulkTags(c *gin.Context, apply func(context.Context, string, []string, string) (int, error)) {
	var body bulkTagsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	updated, err := apply(c.Request.Context(), UserIDFromContext(c), body.BookmarkIDs, body.Tags)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Search serves the omnibar. It answers with a bare list of bookmarks,
// which is what the launcher plugin reads.
func (h *Handler) Search(c *gin.Context) {
	limit := int(parseInt64Default(c.Query("limit"), search.DefaultLimit))
	store, err := h.store.Load(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	results := search.Omnibar(store, c.Query("q"), limit)
	bookmarks := make([]model.Bookmark, 0, len(results))
	for _, r := range results {
		bookmarks = append(bookmarks, *r.Bookmark)
	}
	c.JSON(http.StatusOK, bookmarks)
}

func (h *Handler) Click(c *gin.Context) {
	err := storage.IncrementClickCount(c.Request.Context(), h.store.DB(), UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidPayload), errors.Is(err, tags.ErrEmptyTagName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tags.ErrTagNotFound), errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.JSON(statusClientClosedRequest, gin.H{"error": err.Error()})
	default:
		h.log.WithField("user", UserIDFromContext(c)).WithError(err).Error("request error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// statusClientClosedRequest is nginx's code for a client that went away.
const statusClientClosedRequest = 499

func readBody(c *gin.Context) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return nil, false
	}
	return data, true
}

func parseInt64Default(v string, fallback int64) int64 {
	if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
		return i
	}
	return fallback
}
