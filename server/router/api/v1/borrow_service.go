package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hrygo/libris/server/internal/errors"
	"github.com/hrygo/libris/server/service/library"
	"github.com/hrygo/libris/store"
)

func (s *APIV1Service) BorrowBook(c echo.Context) error {
	var req library.BorrowRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	borrow, err := s.Library.BorrowBook(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, borrow)
}

func (s *APIV1Service) ReturnBook(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	result, err := s.Library.ReturnBook(c.Request().Context(), id, c.QueryParam("return_date"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetBorrow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	borrow, err := s.Library.GetBorrow(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, borrow)
}

func (s *APIV1Service) ListBorrows(c echo.Context) error {
	var (
		studentID int32
		status    string
	)
	if err := echo.QueryParamsBinder(c).
		Int32("student_id", &studentID).
		String("status", &status).
		BindError(); err != nil {
		return invalidQuery(err)
	}

	find := &store.FindBorrow{}
	if studentID != 0 {
		find.StudentID = &studentID
	}
	if status != "" {
		borrowStatus := store.BorrowStatus(status)
		find.Status = &borrowStatus
	}
	borrows, err := s.Library.ListBorrows(c.Request().Context(), find)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, borrows)
}

func (s *APIV1Service) CalculateFines(c echo.Context) error {
	finePerDay, err := parseFinePerDay(c)
	if err != nil {
		return err
	}
	report, err := s.Library.CalculateFines(c.Request().Context(), finePerDay)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *APIV1Service) SendOverdueNotices(c echo.Context) error {
	finePerDay, err := parseFinePerDay(c)
	if err != nil {
		return err
	}
	report, err := s.Library.SendOverdueNotices(c.Request().Context(), finePerDay)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *APIV1Service) ExtendBorrow(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	newDueDate := c.QueryParam("new_due_date")
	if newDueDate == "" {
		return apierrors.InvalidArgument("new_due_date is required")
	}
	extension, err := s.Library.ExtendBorrow(c.Request().Context(), id, newDueDate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, extension)
}

func (s *APIV1Service) ListActiveBorrows(c echo.Context) error {
	var studentID, bookID int32
	if err := echo.QueryParamsBinder(c).
		Int32("student_id", &studentID).
		Int32("book_id", &bookID).
		BindError(); err != nil {
		return invalidQuery(err)
	}

	var studentFilter, bookFilter *int32
	if studentID != 0 {
		studentFilter = &studentID
	}
	if bookID != 0 {
		bookFilter = &bookID
	}
	result, err := s.Library.ActiveBorrows(c.Request().Context(), studentFilter, bookFilter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) ListOverdueBorrows(c echo.Context) error {
	result, err := s.Library.OverdueBorrows(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetBorrowStats(c echo.Context) error {
	stats, err := s.Library.BorrowStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
