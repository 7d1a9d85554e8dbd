package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/libris/server/service/library"
	"github.com/hrygo/libris/store"
)

type createBookRequest struct {
	Title           string             `json:"title"`
	Author          string             `json:"author"`
	ISBN            string             `json:"isbn"`
	Category        store.BookCategory `json:"category"`
	PublicationYear int32              `json:"publication_year"`
}

func (s *APIV1Service) ListBooks(c echo.Context) error {
	books, err := s.Library.ListBooks(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

func (s *APIV1Service) SearchBooks(c echo.Context) error {
	var q library.BookQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return invalidQuery(err)
	}
	result, err := s.Library.SearchBooks(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetBook(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	book, err := s.Library.GetBook(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

func (s *APIV1Service) CreateBook(c echo.Context) error {
	var req createBookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	book, err := s.Library.CreateBook(c.Request().Context(), &store.Book{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		Category:        req.Category,
		PublicationYear: req.PublicationYear,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, book)
}

func (s *APIV1Service) UpdateBook(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch library.BookPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	book, err := s.Library.UpdateBook(c.Request().Context(), id, &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, book)
}

func (s *APIV1Service) GetBookAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	availability, err := s.Library.BookAvailability(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, availability)
}

func (s *APIV1Service) ListBooksByCategory(c echo.Context) error {
	books, err := s.Library.BooksByCategory(c.Request().Context(), c.Param("category"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

func (s *APIV1Service) ListBooksByAuthor(c echo.Context) error {
	books, err := s.Library.BooksByAuthor(c.Request().Context(), c.Param("author"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, books)
}

func (s *APIV1Service) GetBookStats(c echo.Context) error {
	stats, err := s.Library.BookStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
