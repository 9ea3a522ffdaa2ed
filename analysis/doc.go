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


// Package analysis turns raw field content into index terms.
//
// Content is segmented on Unicode word boundaries, lowercased and split on
// compound separators such as URL punctuation. The Analyzer then applies the
// stop-word policy for the field being indexed:
//
//   - title fields detected as English drop English stop words
//   - url fields drop URL noise such as "www" and "com"
//   - everything else passes through unfiltered
//
// Language detection is pluggable through LanguageDetector; the default
// detector is backed by whatlanggo.
package analysis
