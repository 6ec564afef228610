// Package middleware 提供幂等性中间件
package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stockflow/stockflow/internal/cache"
)

const idempotencyKeyHeader = "X-Idempotency-Key"

// cachedResponse 是落入缓存的响应快照
type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Idempotency 幂等性中间件，用于结账等不可重复执行的写操作。
// 携带 X-Idempotency-Key 的请求：首次执行并缓存响应，重放直接
// 返回缓存结果；SetNX 抢锁失败但响应尚未就绪时返回 409，
// 让客户端稍后重试。未携带键的请求原样放行。
func Idempotency(store cache.Cache, ttl time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cacheKey := keyFor(r, key)

			var cached cachedResponse
			if err := store.Get(ctx, cacheKey, &cached); err == nil {
				replay(w, &cached)
				return
			}

			lockKey := cacheKey + ":lock"
			acquired, err := store.SetNX(ctx, lockKey, 1, ttl)
			if err != nil {
				// 缓存不可用时放弃幂等保护，业务照常执行
				logger.Warn("idempotency lock failed, proceeding without protection", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				// 另一个携带相同键的请求正在执行
				if err := store.Get(ctx, cacheKey, &cached); err == nil {
					replay(w, &cached)
					return
				}
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusConflict)
				fmt.Fprintf(w, `{"code":40901,"message":"request with this idempotency key is in flight"}`)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// 只缓存成功结果，失败允许用同一个键重试
			if rec.status < 500 {
				snapshot := &cachedResponse{Status: rec.status, Body: rec.body.Bytes()}
				if err := store.Set(ctx, cacheKey, snapshot, ttl); err != nil {
					logger.Warn("failed to cache idempotent response", zap.Error(err))
				}
			} else {
				store.Del(ctx, lockKey)
			}
		})
	}
}

func keyFor(r *http.Request, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", r.Method, r.URL.Path, key)
}

func replay(w http.ResponseWriter, cached *cachedResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Idempotent-Replay", "true")
	w.WriteHeader(cached.Status)
	w.Write(cached.Body)
}

// recordingWriter 在透传响应的同时记录状态码与响应体
type recordingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
