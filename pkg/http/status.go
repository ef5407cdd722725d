package xhttp

import "github.com/valyala/fasthttp"

const (
	StatusNotFound            = fasthttp.StatusNotFound
	StatusRequestTimeout      = fasthttp.StatusRequestTimeout
	StatusInternalServerError = fasthttp.StatusInternalServerError
)

func StatusText(code int) string {
	return fasthttp.StatusMessage(code)
}
