package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"tradehook/pkg/utils"
)

// Recovery превращает панику обработчика в 500
//
// Текст паники уходит только в лог. http.ErrAbortHandler пробрасывается
// дальше: им net/http обрывает SSE поток без записи в лог.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer recoverPanic(w, r)
		next.ServeHTTP(w, r)
	})
}

func recoverPanic(w http.ResponseWriter, r *http.Request) {
	rec := recover()
	if rec == nil {
		return
	}
	if rec == http.ErrAbortHandler {
		panic(rec)
	}

	utils.L().WithComponent("http").Error("handler panic",
		utils.String("method", r.Method),
		utils.String("path", r.URL.Path),
		utils.RequestID(RequestIDFrom(r.Context())),
		utils.String("panic", fmt.Sprint(rec)),
		utils.String("stack", string(debug.Stack())),
	)

	writeJSONError(w, http.StatusInternalServerError, "internal server error")
}
