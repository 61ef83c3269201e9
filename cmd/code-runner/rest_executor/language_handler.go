package restexecutor

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LanguageLister lists the supported language ids
type LanguageLister interface {
	IDs() []string
}

type languageHandle struct {
	languages LanguageLister
}

// NewLanguageHandle creates handle listing the supported languages
func NewLanguageHandle(l LanguageLister) Register {
	return &languageHandle{languages: l}
}

func (h *languageHandle) Register(r *gin.Engine) {
	r.GET("/languages", h.handleLanguages)
	r.GET("/healthz", handleHealth)
}

func (h *languageHandle) handleLanguages(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"languages": h.languages.IDs()})
}

func handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
