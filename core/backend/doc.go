/*
Package backend implements the HTTP infrastructure of the service

A backend owns the mux router. It installs the request logger, CORS headers,
compression and JSON key recasing, and it serves a few routes of its own:

	/api/version       GET  the build version
	/api/health        GET  liveness, pings the database when there is one
	/api/estatisticas  GET  row counts per table, admin only

Resources

Every entity is exposed with HandleResource, which installs the usual
collection routes on top of a Service:

	GET    /api/{plural}       list
	POST   /api/{plural}       create
	GET    /api/{plural}/{id}  read
	PUT    /api/{plural}/{id}  update
	DELETE /api/{plural}/{id}  delete

The plural is built with core.Plural, so the resource "profissional" is served
under /api/profissionais.

List parameters

	limit=n            page size, 1..500, default 100
	page=n             page number starting with 1
	filter=prop=value  equality, may be repeated
	filter=prop~value  case insensitive contains
	sort=prop          order by property, default is creation time
	order=asc|desc     default asc

Properties can be given as column name (assistido_id) or as JSON name
(AssistidoId). Any other parameter is rejected with 400. Lists return the
pagination headers Pagination-Limit, Pagination-Total-Count,
Pagination-Page-Count and Pagination-Current-Page and an ETag. A request with
a matching If-None-Match header gets 304.

Errors

Handlers return errors through WriteError, which maps the repository and
validation errors to status codes. Internal errors are logged with a numeric
code and only the code is sent to the client.
*/
package backend
