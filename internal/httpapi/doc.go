// Package httpapi exposes the lexgate HTTP surface.
//
// Endpoints:
//
//	POST /api/client/login                  client email+password -> JWT
//	POST /api/admin/login                   staff username+password -> JWT
//	GET  /api/chat/history                  ordered message history
//	POST /api/chat/send                     persist + notify one message
//	GET  /api/chat/ws                       websocket conversation session
//	GET  /api/conversations                 admin: threads by recent activity
//	GET  /api/clients/{id}/processes        tracked legal processes
//	POST /api/clients/{id}/processes        admin: register a process number
//	PATCH /api/processes/{id}/status        admin: change a process status
//	GET  /api/clients/{id}/documents        uploaded document metadata
//	POST /api/webhooks/process              provider consultation push
//	POST /api/webhooks/document-upload      blob storage upload notification
//
// All /api/chat, /api/clients, and /api/conversations routes require a
// bearer token; clients are scoped to their own records while admins pass a
// client id explicitly. Webhook routes authenticate with a shared secret
// header instead and are disabled when no secret is configured.
package httpapi
