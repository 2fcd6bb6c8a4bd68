package rest

const (
	// api
	RouteApiV1 = "/api/v1"

	// files
	RouteFiles             = RouteApiV1 + "/files"
	RouteUpload            = RouteFiles + "/upload"
	RouteDownload          = RouteFiles + "/download/:id"
	RouteInfo              = RouteFiles + "/info/:id"
	RouteList              = RouteFiles + "/list/:gid"
	RouteListLocation      = RouteList + "/:location"
	RouteDelete            = RouteFiles + "/delete/:id"
	RouteDeleteGroup       = RouteFiles + "/deletes/:gid"
	RouteDeleteGroupLocate = RouteDeleteGroup + "/:location"
	RouteDone              = RouteFiles + "/done/:gid"
	RouteDoneLocation      = RouteDone + "/:location"
	RouteThumb             = RouteFiles + "/thumb"
	RouteSweep             = RouteFiles + "/sweep"

	// ops
	RouteHealth  = RouteApiV1 + "/healthz"
	RouteMetrics = RouteApiV1 + "/metrics"
)
