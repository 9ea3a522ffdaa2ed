// Copyright 2025 Poiesic Systems
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


// Package search evaluates boolean queries against the index.
//
// A query is an ordered list of term groups. A record matches a group when
// it holds every term of the group and falls inside the group's scope. The
// Searcher looks up each group through its first term, filters candidates
// by the remaining terms, and concatenates group results in query order,
// keeping only the first hit per owner. Pages are cut from that sequence
// with a query.Cursor.
//
// Group lookups run concurrently and each observes its own consistent
// snapshot of the index; a page is not a single point-in-time view.
package search
