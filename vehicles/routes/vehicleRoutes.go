package routes

import (
	"logistics-backend/middleware"
	"logistics-backend/vehicles/controllers"

	"github.com/gofiber/fiber/v2"
)

// UploadBodyLimit caps the size of an uploaded workbook.
const UploadBodyLimit = 20 * 1024 * 1024

func VehicleRouterInit(app *fiber.App, appCtx *middleware.AppContext, vehicleController *controllers.VehicleController) {
	vehicleRoutes := app.Group("/vehicles", middleware.ProtectedRoute(appCtx))

	bulkUpload := vehicleRoutes.Group("/bulk-upload")
	bulkUpload.Post("/", vehicleController.BulkUploadVehicles)
	bulkUpload.Get("/:batchId", vehicleController.GetBulkUploadStatus)
	bulkUpload.Get("/:batchId/errors", vehicleController.GetBulkUploadErrors)
	bulkUpload.Get("/:batchId/error-report", vehicleController.DownloadErrorReport)
}
