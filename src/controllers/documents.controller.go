package controllers

import (
	"accessbus/src/lib"
	"accessbus/src/models"
	"accessbus/src/types"
	"accessbus/src/utils"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func statusOf(err error) int {
	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// DocumentsUpload stores the multipart "file" field. With link set the
// document is owned by the current user, otherwise it stays a temp upload.
func DocumentsUpload(ctx *gin.Context, link bool) (doc *models.Document, status int, err error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("No file part")
	}
	var owner *uint
	if link {
		userId := ctx.GetUint("id")
		owner = &userId
	}
	doc, err = utils.SaveDocument(ctx, owner, fh)
	if err != nil {
		return nil, statusOf(err), err
	}
	return doc, http.StatusCreated, nil
}

func DocumentsView(ctx *gin.Context) (doc *models.Document, body io.ReadCloser, status int, err error) {
	userId := ctx.GetUint("id")
	doc, err = utils.LatestDocument(ctx, userId)
	if err != nil {
		return nil, nil, statusOf(err), err
	}
	body, err = lib.GetStorage().Get(ctx, doc.Key)
	if errors.Is(err, lib.ErrObjectNotFound) {
		return nil, nil, http.StatusNotFound, types.NotFoundError("Document not found")
	}
	if err != nil {
		return nil, nil, http.StatusInternalServerError, err
	}
	return doc, body, http.StatusOK, nil
}

func DocumentsLink(ctx *gin.Context) (doc *models.Document, status int, err error) {
	var body types.LinkDocumentRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("A valid document_id is required")
	}
	id, err := uuid.Parse(body.DocumentID)
	if err != nil {
		return nil, http.StatusBadRequest, types.ValidationError("A valid document_id is required")
	}
	doc, err = utils.LinkDocument(ctx, ctx.GetUint("id"), id)
	if err != nil {
		return nil, statusOf(err), err
	}
	return doc, http.StatusOK, nil
}
