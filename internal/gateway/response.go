package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/jacl-coder/ForBattle-Server/internal/engine"
)

// Response 统一响应结构
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("写入响应失败: %v", err)
	}
}

// sendSuccess 发送成功响应
func sendSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// sendFailure 发送网关自身产生的错误
func sendFailure(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{Message: message, Code: code})
}

// statusFor 引擎错误类别对应的HTTP状态码
func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindNotFound:
		return http.StatusNotFound
	case engine.KindUnauthorized:
		return http.StatusForbidden
	case engine.KindConflict:
		return http.StatusConflict
	case engine.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case engine.KindInvalidState:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sendError 把引擎错误映射为响应，data 可附带部分结果
func sendError(w http.ResponseWriter, r *http.Request, err error, data any) {
	var e *engine.Error
	if !errors.As(err, &e) {
		log.Printf("[%s] %s %s 内部错误: %v", requestID(r), r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "服务器内部错误", Code: "INTERNAL_ERROR"})
		return
	}
	status := statusFor(e.Kind)
	if status == http.StatusInternalServerError {
		log.Printf("[%s] %s %s 写入失败: %v", requestID(r), r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, Response{Message: e.Message, Code: e.Code, Data: data})
}

// decodeBody 解析JSON请求体
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendFailure(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("无效的请求格式: %v", err))
		return false
	}
	return true
}
