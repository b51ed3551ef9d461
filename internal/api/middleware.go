// 文件: internal/api/middleware.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// contextKey 是上下文键的专用类型，避免与其他包的键冲突。
type contextKey string

const contextKeyUserID contextKey = "userId"

// UserIDFromContext 返回鉴权中间件写入的用户标识，未经过中间件时为空串。
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID).(string)
	return userID
}

// withUserID 供测试在不走完整JWT流程的情况下注入用户身份。
func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// AuthMiddleware 校验 Authorization: Bearer <token> 头。
// 令牌由托管后端用 HMAC-SHA256 签发；缺失或无效的令牌在任何数据查询之前
// 直接以 401 拒绝。校验通过后把令牌中的 sub 作为用户标识放入请求上下文。
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "缺少 Bearer 令牌")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "无效的访问令牌")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				respondError(w, http.StatusUnauthorized, "令牌缺少用户标识")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), subject)))
		})
	}
}

// userRateLimiter 为每个用户维护一个令牌桶，用于限制错误上报频率。
type userRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// newUserRateLimiter 创建限流器。perMinute 是每分钟允许的请求数。
func newUserRateLimiter(perMinute int) *userRateLimiter {
	return &userRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow 报告该用户当前是否还有配额。
func (l *userRateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// SignToken 用与中间件相同的算法签发一个测试/调试用令牌。
func SignToken(secret, userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, nil
}
