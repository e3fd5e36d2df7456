// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/q191201771/dtvrec/pkg/base"
	"github.com/q191201771/dtvrec/pkg/logic"
	"github.com/q191201771/dtvrec/pkg/source"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

func main() {
	defer nazalog.Sync()

	confFile, cpuProfiling, memProfiling := parseFlag()
	if cpuProfiling {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	} else if memProfiling {
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	rawContent := base.WrapReadConfigFile(confFile, logic.DefaultConfFilenameList, nil)
	config, err := logic.LoadConfAndInitLog(rawContent)
	if err != nil {
		base.OsExitAndWaitPressIfWindows(1)
	}

	var src source.ISource
	if config.SourceConfig.Type == logic.SourceTypeSrt {
		src, err = newSrtSource(config.SourceConfig)
	} else {
		src, err = logic.NewSourceByConfig(config.SourceConfig)
	}
	if err != nil {
		nazalog.Errorf("create source failed. err=%+v", err)
		return
	}

	entry := logic.NewEntry(config, src)
	if err = entry.RunLoop(); err != nil {
		nazalog.Errorf("recording failed. err=%+v", err)
	}
}

func parseFlag() (string, bool, bool) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	cp := flag.Bool("cp", false, "if yes, cpu profiling is enabled")
	mp := flag.Bool("mp", false, "if yes, memory profiling is enabled")
	flag.Parse()
	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.DtvrecFullInfo)
		os.Exit(0)
	}
	if *cf == "" {
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  ./bin/dtvrec -c ./conf/dtvrec.conf.json
`)
	}
	return *cf, *cp, *mp
}
