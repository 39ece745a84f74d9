package poller

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/OpenTransitTools/fleettrail/business/data/fleet"
	"github.com/OpenTransitTools/fleettrail/foundation/httpclient"
)

// routeCatalog keeps route names from the static gtfs routes.txt file loaded, reloading it every refreshEvery
type routeCatalog struct {
	staticGTFSUrl string
	tempDir       string
	refreshEvery  time.Duration
	lastLoaded    time.Time
	remoteInfo    httpclient.RemoteFileInfo
	//keys are routeIds
	routes map[string]fleet.RouteInfo
}

// makeRouteCatalog creates an empty routeCatalog, routes are loaded on the first refresh
func makeRouteCatalog(staticGTFSUrl string, tempDir string, refreshEvery time.Duration) *routeCatalog {
	return &routeCatalog{
		staticGTFSUrl: staticGTFSUrl,
		tempDir:       tempDir,
		refreshEvery:  refreshEvery,
		routes:        make(map[string]fleet.RouteInfo),
	}
}

// lookup returns the RouteInfo for routeId
func (r *routeCatalog) lookup(routeId string) (fleet.RouteInfo, bool) {
	route, present := r.routes[routeId]
	return route, present
}

// size returns the number of routes loaded
func (r *routeCatalog) size() int {
	return len(r.routes)
}

// refresh reloads routes if refreshEvery has passed since the last load and the remote file has changed.
// on error the previously loaded routes are kept
func (r *routeCatalog) refresh(log *log.Logger, now time.Time) error {
	if len(r.routes) > 0 && now.Before(r.lastLoaded.Add(r.refreshEvery)) {
		return nil
	}
	if len(r.routes) > 0 {
		remoteInfo, err := httpclient.GetRemoteFileInfo(r.staticGTFSUrl)
		if err == nil && !remoteInfo.IsDifferent(r.remoteInfo.ETag, r.remoteInfo.LastModifiedTimestamp) {
			log.Printf("static gtfs at %s unchanged, keeping %d routes\n", r.staticGTFSUrl, len(r.routes))
			r.lastLoaded = now
			return nil
		}
	}

	if err := os.MkdirAll(r.tempDir, os.ModePerm); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", r.tempDir, err)
	}
	localGtfsZipFile := filepath.Join(r.tempDir, "gtfs.zip")
	log.Printf("Downloading file from %s to %s\n", r.staticGTFSUrl, localGtfsZipFile)
	downloadedFile, err := httpclient.DownloadRemoteFile(localGtfsZipFile, r.staticGTFSUrl)

	//remove downloaded file after we are done
	defer func() {
		if _, statErr := os.Stat(localGtfsZipFile); statErr == nil {
			if removeErr := os.Remove(localGtfsZipFile); removeErr != nil {
				log.Printf("Unable to remove downloaded file. error:%v", removeErr)
			}
		}
	}()
	if err != nil {
		return fmt.Errorf("downloading static gtfs: %w", err)
	}

	routes, err := loadRoutesFromZip(localGtfsZipFile)
	if err != nil {
		return err
	}
	r.routes = routes
	r.remoteInfo = downloadedFile.RemoteFileInfo
	r.lastLoaded = now
	log.Printf("Loaded %d routes from %s\n", len(routes), r.staticGTFSUrl)
	return nil
}

// loadRoutesFromZip reads routes.txt from the gtfs zip file at path
func loadRoutesFromZip(path string) (map[string]fleet.RouteInfo, error) {
	zipReader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = zipReader.Close()
	}()

	for _, f := range zipReader.File {
		if f.FileInfo().IsDir() || filepath.Base(f.Name) != "routes.txt" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		routes, err := readRoutes(rc, f.Name)
		closeErr := rc.Close()
		if err != nil {
			return nil, err
		}
		return routes, closeErr
	}
	return nil, fmt.Errorf("gtfs zip file is missing routes.txt")
}

// readRoutes parses a gtfs routes.txt file into RouteInfo by routeId
func readRoutes(r io.Reader, filename string) (map[string]fleet.RouteInfo, error) {
	parser, err := makeGTFSFileParser(r, filename)
	if err != nil {
		return nil, err
	}
	routes := make(map[string]fleet.RouteInfo)
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		route, err := buildRoute(parser)
		if err != nil {
			return nil, err
		}
		routes[route.RouteId] = route
	}
	return routes, nil
}

func buildRoute(parser *gtfsFileParser) (fleet.RouteInfo, error) {
	route := fleet.RouteInfo{
		RouteId:   parser.getString("route_id", false),
		ShortName: parser.getString("route_short_name", true),
		LongName:  parser.getString("route_long_name", true),
	}
	return route, parser.getError()
}
