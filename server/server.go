// Package server exposes lawcite over HTTP.
package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/birucan/lawcite"
)

// Options configures the router.
type Options struct {
	// CORSOrigins lists allowed origins. "*" allows all; empty disables CORS.
	CORSOrigins []string
}

// NewRouter returns a gin engine serving svc.
func NewRouter(svc lawcite.Service, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(recoveryMiddleware(), requestIDMiddleware(), logMiddleware())
	if c, ok := corsConfig(opts.CORSOrigins); ok {
		r.Use(cors.New(c))
	}

	h := &handler{svc: svc}
	r.POST("/create_documents", h.handleCreateDocuments)
	r.POST("/query", h.handleQuery)
	r.GET("/health", h.handleHealth)
	return r
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c, true
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c, true
}
