package utils

import (
	"context"

	"github.com/mmdatafocus/lms_backend/appctx"
)

var (
	ContextKeySessionToken  = appctx.ContextKeySessionToken
	ContextKeyAdminUsername = appctx.ContextKeyAdminUsername
	ContextKeyRegNo         = appctx.ContextKeyRegNo
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyIsAdmin       = appctx.ContextKeyIsAdmin
	ContextKeyDeskSubject   = appctx.ContextKeyDeskSubject
)

func SetSessionTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeySessionToken, token)
}

func GetAdminUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyAdminUsername)
}

func SetAdminUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyAdminUsername, username)
}

func GetRegNoFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRegNo)
}

func SetRegNoInContext(ctx context.Context, regNo string) context.Context {
	return appctx.Set(ctx, ContextKeyRegNo, regNo)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func GetDeskSubjectFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyDeskSubject)
}

func SetDeskSubjectInContext(ctx context.Context, subject string) context.Context {
	return appctx.Set(ctx, ContextKeyDeskSubject, subject)
}
