package xhttp

import (
	"github.com/fasthttp/router"
)

type Router = router.Router

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter returns a router preconfigured with redirect and
// not-found behavior shared by every server in this repo.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = NotFoundHandler
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	return r
}

// NotFoundHandler answers unmatched routes and disallowed methods.
func NotFoundHandler(ctx *RequestCtx) {
	ctx.Error(StatusText(StatusNotFound), StatusNotFound)
}
