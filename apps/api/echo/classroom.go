package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
)

type classroomApi struct {
	svc        classroom.ServiceInterface
	catalog    classroom.CatalogGateway
	validate   *validator.Validate
	translator ut.Translator
}

func registerClassroomAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := classroomApi{
		svc:        opts.ClassroomSvc,
		catalog:    opts.Catalog,
		validate:   opts.Validate,
		translator: opts.Translator,
	}

	// course catalog browsing, open to any authed user
	g.GET("/courses", api.queryCourses, jwt)

	cg := g.Group("/classrooms", jwt)
	cg.POST("", api.create, staffMiddleware())
	cg.GET("", api.query)

	// detail endpoints
	dg := cg.Group("/:uuid")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/resync", api.resync, adminMiddleware())

	dg.POST("/enroll", api.enroll, staffMiddleware())
	dg.GET("/enrollments", api.queryEnrollments)
	dg.DELETE("/enrollments/:user_id", api.unenroll, staffMiddleware())

	dg.POST("/assignments", api.createAssignment, staffMiddleware())
	dg.GET("/assignments", api.queryAssignments)
}

// Handlers

func (api *classroomApi) create(ctx echo.Context) error {
	var data CreateClassroomRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateClassroomRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cls, err := api.svc.CreateClassroom(ctx.Request().Context(), classroom.NewClassroom{
		SchoolID: claims.School(),
		Name:     data.Name,
	})
	if err != nil {
		return errors.Wrap(err, "creating classroom")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classroomApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	var classrooms []classroom.Classroom
	if claims.IsAdmin() {
		classrooms, err = api.svc.QueryAll(ctx.Request().Context(), ordering.Orderings...)
	} else {
		classrooms, err = api.svc.Filter(ctx.Request().Context(), claims.School(), ordering.Orderings...)
	}
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	if classrooms == nil {
		classrooms = []classroom.Classroom{}
	}
	return ctx.JSON(http.StatusOK, classrooms)
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	cls, err := api.svc.GetByUUID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting classroom")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classroomApi) update(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}

	var data classroom.UpdateClassroom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClassroom")
	}

	cls, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating classroom")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classroomApi) destroy(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// enroll adds the identified users as members; identifiers already enrolled
// are reported back as skipped instead of failing the batch.
func (api *classroomApi) enroll(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}

	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	resp := EnrollResponse{Enrolled: []classroom.Enrollment{}, Skipped: []string{}}
	for _, identifier := range data.Identifiers {
		enr, err := api.svc.CreateEnrollment(ctx.Request().Context(), classroom.NewEnrollment{
			ClassroomID: id,
			UserID:      identifier,
			Staff:       data.Staff,
		})
		if err != nil {
			if vErr, ok := errors.Cause(err).(*core.ValidationError); ok && errors.Cause(vErr.Err) == classroom.ErrEnrollmentExists {
				resp.Skipped = append(resp.Skipped, identifier)
				continue
			}
			return errors.Wrap(err, "creating enrollment")
		}
		resp.Enrolled = append(resp.Enrolled, enr)
	}
	return ctx.JSON(http.StatusCreated, resp)
}

func (api *classroomApi) queryEnrollments(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	enrollments, err := api.svc.QueryEnrollments(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []classroom.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *classroomApi) unenroll(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Unenroll(ctx.Request().Context(), id, ctx.Param("user_id")); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classroomApi) createAssignment(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}

	var data AssignmentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	asg, err := api.svc.CreateAssignment(ctx.Request().Context(), classroom.NewAssignment{
		ClassroomID: id,
		CourseID:    data.CourseID,
	})
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *classroomApi) queryAssignments(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []classroom.CourseAssignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *classroomApi) resync(ctx echo.Context) error {
	id, err := api.classroomID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Resync(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "resyncing classroom")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Enrollments resynchronized."})
}

func (api *classroomApi) queryCourses(ctx echo.Context) error {
	courses, err := api.catalog.ListTemplateCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing template courses")
	}
	if courses == nil {
		courses = []classroom.CourseInfo{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *classroomApi) classroomID(ctx echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("uuid"))
	if err != nil {
		return uuid.UUID{}, errHttpNotFound
	}
	return id, nil
}

type (
	CreateClassroomRequest struct {
		Name string `json:"name" validate:"omitempty,lte=255,alphanum_"`
	}

	EnrollRequest struct {
		Identifiers []string `json:"identifiers" validate:"required,min=1,dive,required,email"`
		Staff       bool     `json:"staff"`
	}

	EnrollResponse struct {
		Enrolled []classroom.Enrollment `json:"enrolled"`
		Skipped  []string               `json:"skipped"`
	}

	AssignmentRequest struct {
		CourseID string `json:"course_id" validate:"required,coursekey"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (r *CreateClassroomRequest) Validate(validate *validator.Validate) error {
	r.Name = core.CleanString(r.Name)
	return validate.Struct(r)
}

func (r *EnrollRequest) Validate(validate *validator.Validate) error {
	for i, identifier := range r.Identifiers {
		r.Identifiers[i] = core.CleanString(identifier, true /* lower */)
	}
	return validate.Struct(r)
}

func (r *AssignmentRequest) Validate(validate *validator.Validate) error {
	r.CourseID = core.CleanString(r.CourseID)
	return validate.Struct(r)
}
