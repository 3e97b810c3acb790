package app

import "github.com/gin-gonic/gin"

// Module registers its routes on the API group.
type Module interface {
	RegisterRoutes(api *gin.RouterGroup)
}
