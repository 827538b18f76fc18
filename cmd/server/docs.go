// Package main Chatwave API
//
//	@title			Chatwave API
//	@version		1.0
//	@description	Real-time chat relay with direct and group messaging and call signaling over WebSocket
//
//	@contact.name	Chatwave Maintainers
//	@contact.url	https://github.com/observer/chatwave
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT token (format: Bearer <token>)
package main
