package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func listCoursesHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		courses, err := catalog.ListCourses(c.Request.Context(), c.Query("category"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(courses), "results": courses})
	}
}

func getCourseHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		course, err := catalog.GetCourse(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

func listCategoriesHandler(catalog CatalogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := catalog.ListCategories(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(categories), "results": categories})
	}
}
