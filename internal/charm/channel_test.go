// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package charm

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type channelSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&channelSuite{})

func (s *channelSuite) TestParseChannelFull(c *gc.C) {
	ch, err := ParseChannel("yoga/edge")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ch, gc.DeepEquals, Channel{Track: "yoga", Risk: Edge})
}

func (s *channelSuite) TestParseChannelBareRiskAssumesLatest(c *gc.C) {
	for _, risk := range Risks {
		ch, err := ParseChannel(string(risk))
		c.Assert(err, jc.ErrorIsNil)
		c.Check(ch, gc.DeepEquals, Channel{Track: "latest", Risk: risk})
	}
}

func (s *channelSuite) TestParseChannelBareTrackAssumesStable(c *gc.C) {
	ch, err := ParseChannel("xena")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ch, gc.DeepEquals, Channel{Track: "xena", Risk: Stable})
}

func (s *channelSuite) TestParseChannelInvalidRisk(c *gc.C) {
	_, err := ParseChannel("latest/testing")
	c.Assert(err, gc.ErrorMatches, `risk in channel "latest/testing" not valid`)
}

func (s *channelSuite) TestParseChannelEmpty(c *gc.C) {
	_, err := ParseChannel("")
	c.Assert(err, gc.ErrorMatches, `empty channel not valid`)
}

func (s *channelSuite) TestParseChannelEmptyTrack(c *gc.C) {
	_, err := ParseChannel("/edge")
	c.Assert(err, gc.ErrorMatches, `track in channel "/edge" not valid`)
}

func (s *channelSuite) TestParseChannelTooManyComponents(c *gc.C) {
	_, err := ParseChannel("latest/edge/hotfix")
	c.Assert(err, gc.ErrorMatches, `channel is malformed and has too many components "latest/edge/hotfix"`)
}

func (s *channelSuite) TestMakeChannelDefaultsTrack(c *gc.C) {
	ch, err := MakeChannel("", "beta")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ch.String(), gc.Equals, "latest/beta")
}

func (s *channelSuite) TestMakeChannelInvalidRisk(c *gc.C) {
	_, err := MakeChannel("latest", "testing")
	c.Assert(err, gc.ErrorMatches, `risk "testing" not valid`)
}

func (s *channelSuite) TestString(c *gc.C) {
	ch := Channel{Track: "yoga", Risk: Candidate}
	c.Check(ch.String(), gc.Equals, "yoga/candidate")
}

func (s *channelSuite) TestGroupByTrack(c *gc.C) {
	groups := GroupByTrack([]string{
		"latest/edge",
		"yoga/edge",
		"latest/stable",
		"yoga/candidate",
	})
	c.Assert(groups, gc.DeepEquals, []TrackChannels{{
		Track:    "latest",
		Channels: []string{"latest/edge", "latest/stable"},
	}, {
		Track:    "yoga",
		Channels: []string{"yoga/edge", "yoga/candidate"},
	}})
}

func (s *channelSuite) TestGroupByTrackBareNames(c *gc.C) {
	groups := GroupByTrack([]string{"latest", "latest/edge"})
	c.Assert(groups, gc.DeepEquals, []TrackChannels{{
		Track:    "latest",
		Channels: []string{"latest", "latest/edge"},
	}})
}
