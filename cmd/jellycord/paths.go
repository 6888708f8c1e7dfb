package main

import "tools.zach/dev/jellycord/internal/paths"

// DataPaths aliases [paths.DataDir] so daemon code can reference path helpers
// without qualifying the internal package name.
type DataPaths = paths.DataDir
