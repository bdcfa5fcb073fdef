package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// maxImageBytes bounds product images and avatars.
const maxImageBytes = 5 << 20

// ProductHandler handles the product catalogue and image uploads.
type ProductHandler struct {
	service ports.ProductService
}

func NewProductHandler(service ports.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// Create handles POST /v1/products.
//
// @Summary      List a product for sale
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createProductRequest  true  "Product details, price in NGN"
// @Success      201   {object}  domain.Product
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req createProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.Create(c.Request().Context(), toCreateProductInput(req, s.UserID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Get handles GET /v1/products/:id.
//
// @Summary      Get a product and its seller
// @Tags         products
// @Produce      json
// @Param        id   path      string  true  "Product id"
// @Success      200  {object}  ports.ProductDetail
// @Failure      404  {object}  errorResponse
// @Router       /v1/products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	detail, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

// Update handles PATCH /v1/products/:id. Only the seller may edit.
//
// @Summary      Edit a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Product id"
// @Param        body  body      updateProductRequest  true  "Fields to change"
// @Success      200   {object}  domain.Product
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /v1/products/{id} [patch]
func (h *ProductHandler) Update(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req updateProductRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	p, err := h.service.Update(c.Request().Context(), s.UserID, c.Param("id"), toProductUpdate(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /v1/products/:id. Only the seller may delete.
//
// @Summary      Delete a product
// @Tags         products
// @Security     BearerAuth
// @Param        id  path  string  true  "Product id"
// @Success      204
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), s.UserID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Search handles GET /v1/products.
//
// @Summary      Search products
// @Tags         products
// @Produce      json
// @Param        q          query     string  false  "Text in name or description"
// @Param        category   query     string  false  "Exact category"
// @Param        owner      query     string  false  "Seller user id"
// @Param        min_price  query     number  false  "Lowest price in NGN"
// @Param        max_price  query     number  false  "Highest price in NGN"
// @Param        page       query     int     false  "1-based page"
// @Param        limit      query     int     false  "Page size"
// @Success      200        {object}  ports.ProductPage
// @Failure      400        {object}  errorResponse
// @Router       /v1/products [get]
func (h *ProductHandler) Search(c echo.Context) error {
	minPrice, err := queryFloat(c, "min_price")
	if err != nil {
		return err
	}
	maxPrice, err := queryFloat(c, "max_price")
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}

	result, err := h.service.Search(c.Request().Context(), ports.ProductFilter{
		OwnerID:  c.QueryParam("owner"),
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Categories handles GET /v1/products/categories.
//
// @Summary      Product categories in use
// @Tags         products
// @Produce      json
// @Success      200  {object}  categoriesResponse
// @Router       /v1/products/categories [get]
func (h *ProductHandler) Categories(c echo.Context) error {
	cats, err := h.service.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categoriesResponse{Categories: cats})
}

// UploadImage handles POST /v1/uploads/images (multipart field "file").
//
// @Summary      Upload a product image
// @Tags         products
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Image"
// @Success      201   {object}  uploadResponse
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Router       /v1/uploads/images [post]
func (h *ProductHandler) UploadImage(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	fh, f, err := formImage(c)
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := h.service.UploadImage(c.Request().Context(), s.UserID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, uploadResponse{URL: url})
}

// formImage opens the multipart field "file", rejecting oversized parts.
func formImage(c echo.Context) (*multipart.FileHeader, io.ReadCloser, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > maxImageBytes {
		return nil, nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds 5 MiB")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable file")
	}
	return fh, f, nil
}
