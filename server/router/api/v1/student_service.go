package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/libris/server/service/library"
	"github.com/hrygo/libris/store"
)

type createStudentRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	StudentID string `json:"student_id"`
	Grade     string `json:"grade"`
}

func (s *APIV1Service) ListStudents(c echo.Context) error {
	activeOnly := true
	if err := echo.QueryParamsBinder(c).Bool("active_only", &activeOnly).BindError(); err != nil {
		return invalidQuery(err)
	}
	students, err := s.Library.ListStudents(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

func (s *APIV1Service) GetStudent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	student, err := s.Library.GetStudent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (s *APIV1Service) CreateStudent(c echo.Context) error {
	var req createStudentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	student, err := s.Library.CreateStudent(c.Request().Context(), &store.Student{
		Name:          req.Name,
		Email:         req.Email,
		StudentNumber: req.StudentID,
		Grade:         req.Grade,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, student)
}

func (s *APIV1Service) UpdateStudent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var patch library.StudentPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	student, err := s.Library.UpdateStudent(c.Request().Context(), id, &patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (s *APIV1Service) GetStudentBorrowedBooks(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	result, err := s.Library.StudentBorrowedBooks(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetStudentBorrowHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	limit := library.DefaultHistoryLimit
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return invalidQuery(err)
	}
	result, err := s.Library.StudentBorrowHistory(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetStudentFines(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	statement, err := s.Library.StudentFines(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statement)
}

func (s *APIV1Service) GetStudentStats(c echo.Context) error {
	stats, err := s.Library.StudentStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *APIV1Service) SearchStudentsByName(c echo.Context) error {
	result, err := s.Library.SearchStudentsByName(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// SendStudentNotification accepts subject and message as query parameters or in a
// JSON body. Query parameters win.
func (s *APIV1Service) SendStudentNotification(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var n library.Notification
	if err := bind(c, &n); err != nil {
		return err
	}
	if err := echo.QueryParamsBinder(c).
		String("subject", &n.Subject).
		String("message", &n.Message).
		BindError(); err != nil {
		return invalidQuery(err)
	}
	result, err := s.Library.NotifyStudent(c.Request().Context(), id, &n)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}
