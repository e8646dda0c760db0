// Package layername classifies compositor layer names.
package layername

import "regexp"

var (
	// validLayerName matches the layers we keep track of, for instance:
	//   StatusBar#0
	//   NavigationBar#1
	//   com.appname/com.appname.activity#0
	//   SurfaceView - com.appname/com.appname.activity#0
	// The layer name would only consist of . / $ _ 0-9 a-z A-Z in most cases.
	validLayerName = regexp.MustCompile(
		`^(?:(?:(?:SurfaceView[-\s\t]+)?com?\.[./$\w]+)|(?:(?:Status|Navigation)Bar))#\d+$`,
	)

	// packageName captures the package in the same shapes:
	//   StatusBar in StatusBar#0
	//   com.appname in com.appname/com.appname.activity#0
	//   com.appname in SurfaceView - com.appname/com.appname.activity#0
	packageName = regexp.MustCompile(`^(?:SurfaceView[-\s\t]+)?([^/]+).*#\d+$`)
)

// IsValid reports whether name is a layer we should create tracking state for.
// It gates admission so arbitrary layer names cannot grow the tracker without bound.
func IsValid(name string) bool {
	return validLayerName.MatchString(name)
}

// PackageName returns the package segment of a layer name, or an empty string
// if the name doesn't have the expected shape. It's only used for grouping.
func PackageName(name string) string {
	m := packageName.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}
