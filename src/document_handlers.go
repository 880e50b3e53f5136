package main

import (
	"accessbus/src/controllers"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func uploadDocumentHandler(link bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		doc, status, err := controllers.DocumentsUpload(ctx, link)
		if err != nil {
			abortWithError(ctx, status, err)
			return
		}
		ctx.JSON(http.StatusCreated, gin.H{
			"message":     "File uploaded",
			"success":     true,
			"document_id": doc.ID,
			"linked":      doc.Linked(),
		})
	}
}

func documentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/upload_pdf", uploadDocumentHandler(true)).
		GET("/view_pdf", func(ctx *gin.Context) {
			doc, body, status, err := controllers.DocumentsView(ctx)
			if err != nil {
				abortWithError(ctx, status, err)
				return
			}
			defer body.Close()
			ctx.DataFromReader(http.StatusOK, doc.Size, doc.ContentType, body, map[string]string{
				"Content-Disposition": fmt.Sprintf("inline; filename=%q", doc.Filename),
			})
		}).
		POST("/link_document_to_user", func(ctx *gin.Context) {
			doc, status, err := controllers.DocumentsLink(ctx)
			if err != nil {
				abortWithError(ctx, status, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"message": "Document linked", "success": true, "document_id": doc.ID})
		})
	return g
}
