// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// DtvrecVersion 整个工程的版本号。注意，该变量由外部脚本修改维护，不要手动在代码中修改
const DtvrecVersion = "v0.2.0"

// ConfVersion dtvrec配置文件的版本号
const ConfVersion = "v0.1.0"

var (
	DtvrecLibraryName = "dtvrec"
	DtvrecGithubRepo  = "github.com/q191201771/dtvrec"
	DtvrecGithubSite  = "https://github.com/q191201771/dtvrec"

	// DtvrecFullInfo e.g. dtvrec v0.2.0 (github.com/q191201771/dtvrec)
	DtvrecFullInfo = DtvrecLibraryName + " " + DtvrecVersion + " (" + DtvrecGithubRepo + ")"

	// DtvrecVersionDot e.g. 0.2.0
	DtvrecVersionDot string

	// DtvrecM3u8Comment 写入segment索引文件的注释行
	// e.g. #EXT-X-DTVREC:dtvrec0.2.0
	DtvrecM3u8Comment string
)

func init() {
	DtvrecVersionDot = strings.TrimPrefix(DtvrecVersion, "v")
	DtvrecM3u8Comment = "#EXT-X-DTVREC:" + DtvrecLibraryName + DtvrecVersionDot
}
