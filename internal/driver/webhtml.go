// Copyright 2017 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"html/template"
	"io"
	"time"
)

// treemapData is the data rendered by treemapTemplate.
type treemapData struct {
	Title  string
	Legend []string

	// Groups is the groups JSON of the tree, embedded in the page.
	Groups string

	// Quiescence is the quiet time after the last window resize before
	// the treemap is laid out again.
	Quiescence time.Duration

	// Live pages poll the server and reload their groups when the
	// generation changes.
	Live       bool
	Generation uint64
}

// GroupsJS returns the groups for inclusion in a script.
func (d treemapData) GroupsJS() template.JS {
	if d.Groups == "" {
		return "[]"
	}
	// The groups come from encoding/json, which escapes <, > and &.
	return template.JS(d.Groups)
}

// QuiescenceMillis returns the quiescence in milliseconds.
func (d treemapData) QuiescenceMillis() int64 {
	return d.Quiescence.Milliseconds()
}

func writeTreemap(w io.Writer, d treemapData) error {
	return treemapTemplate.Execute(w, d)
}

var treemapTemplate = template.Must(template.New("treemap").Parse(
	`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>{{.Title}}</title>
<style type="text/css">
html, body {
  height: 100%;
  min-height: 100%;
  margin: 0px;
}
body {
  display: flex;
  flex-direction: column;
  font-family: sans-serif;
  overflow: hidden;
}
h1 {
  font-weight: normal;
  font-size: 24px;
  margin-top: 5px;
  margin-bottom: 5px;
}
#header {
  flex: 0 0 auto;
  padding: 0px 8px;
}
#legend {
  font-size: 12px;
  color: #555;
  margin-bottom: 5px;
}
#visualization {
  flex: 1 1 auto;
  min-height: 0px;
}
</style>
<script src="https://get.carrotsearch.com/foamtree/latest/carrotsearch.foamtree.js"></script>
</head>
<body>
<div id="header">
<h1>{{.Title}}</h1>
<div id="legend">{{range .Legend}}<div>{{.}}</div>{{end}}</div>
</div>
<div id="visualization"></div>
<script>
(function() {
  "use strict";

  const groups = {{.GroupsJS}};

  let foamtree;
  if (typeof CarrotSearchFoamTree !== "undefined") {
    foamtree = new CarrotSearchFoamTree({
      id: "visualization",
      dataObject: {groups: groups},
      layout: "squarified",
      stacking: "flattened",
      pixelRatio: window.devicePixelRatio || 1,
    });
  } else {
    // Without the charting engine the page still follows resizes.
    foamtree = {resize: function() {}, set: function() {}};
    document.getElementById("visualization").textContent =
      "The treemap engine could not be loaded.";
  }

  // Lay the treemap out again once the window has stopped resizing.
  // At most one re-layout is pending at any time.
  window.symtreeRelayouts = 0;
  let resizeTimeout = null;
  window.addEventListener("resize", function() {
    if (resizeTimeout !== null) {
      clearTimeout(resizeTimeout);
    }
    resizeTimeout = setTimeout(() => {
      resizeTimeout = null;
      window.symtreeRelayouts++;
      foamtree.resize();
    }, {{.QuiescenceMillis}});
  });
{{if .Live}}
  let generation = {{.Generation}};
  setInterval(function() {
    fetch("./generation")
      .then((r) => r.json())
      .then(function(g) {
        if (g.generation === generation) {
          return;
        }
        generation = g.generation;
        return fetch("./groups.json" + window.location.search)
          .then((r) => r.json())
          .then((groups) => foamtree.set("dataObject", {groups: groups}));
      })
      .catch(function() {});
  }, 2000);
{{end}}
})();
</script>
</body>
</html>
`))
