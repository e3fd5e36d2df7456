// Copyright 2022, Chef.  All rights reserved.
// https://github.com/q191201771/lal
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package ringbuffer

import (
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

func TestMakePlaylist(t *testing.T) {
	segments := []SegmentInfo{
		{Id: 3, Filename: "live-3.ts", DurationMs: 10010},
		{Id: 4, Filename: "live-4.ts", DurationMs: 4000},
	}
	golden := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:11
#EXT-X-MEDIA-SEQUENCE:3

#EXTINF:10.010,
live-3.ts
#EXTINF:4.000,
live-4.ts
#EXT-X-ENDLIST
`
	assert.Equal(t, golden, string(makePlaylist(segments, 3, true)))

	d, err := CalcM3u8Duration([]byte(golden))
	assert.Equal(t, nil, err)
	assert.Equal(t, 14010, int(d*1000+0.5))
}

func TestCalcM3u8Duration(t *testing.T) {
	_, err := CalcM3u8Duration([]byte("#EXTINF:abc,\nlive-0.ts\n"))
	assert.IsNotNil(t, err)

	d, err := CalcM3u8Duration([]byte("#EXTM3U\n"))
	assert.Equal(t, nil, err)
	assert.Equal(t, float64(0), d)
}
