package scrape

// In-page extraction scripts. Evaluated results unmarshal into the typed
// models, so the object shapes here must track them.

// moduleAnchorsJS collects every anchor pointing at a recordings listing.
const moduleAnchorsJS = `(() => {
	const out = [];
	document.querySelectorAll('a').forEach(a => {
		if (a.href && a.href.includes('mod/bigbluebuttonbn/view.php')) {
			out.push({ text: a.innerText.trim(), link: a.href });
		}
	});
	return out;
})()`

// recordingRowsJS extracts playback rows from the recordings table. The
// primary table id is checked first, with the generic Moodle table class as a
// fallback; rows with fewer than five cells are chrome, not data. The
// playback URL lives in data-href on the action button, with the plain href
// as a fallback when it is a real link rather than "#".
const recordingRowsJS = `(() => {
	let rows = document.querySelectorAll('#bigbluebuttonbn_recordings_table tbody tr');
	if (rows.length === 0) rows = document.querySelectorAll('.generaltable tbody tr');
	const out = [];
	rows.forEach(row => {
		if (row.querySelectorAll('td').length < 5) return;
		const el = row.querySelector('a.btn');
		let link = el ? el.getAttribute('data-href') : null;
		if (!link && el) {
			const href = el.getAttribute('href');
			if (href && href !== '#') link = href;
		}
		if (link) {
			out.push({ name: row.innerText.split('\n')[0].trim(), link: link });
		}
	});
	return out;
})()`

// mediaSourcesJS inventories media on a playback page. Sets keep the URL
// lists distinct; orphan <source> nodes are attributed by parent tag and
// default to video. The svg count approximates the slide deck size.
const mediaSourcesJS = `(() => {
	const videos = new Set();
	const audios = new Set();
	document.querySelectorAll('video').forEach(v => {
		if (v.src) videos.add(v.src);
		v.querySelectorAll('source').forEach(s => s.src && videos.add(s.src));
	});
	document.querySelectorAll('audio').forEach(a => {
		if (a.src) audios.add(a.src);
		a.querySelectorAll('source').forEach(s => s.src && audios.add(s.src));
	});
	document.querySelectorAll('source').forEach(s => {
		if (!s.src) return;
		const parent = s.parentElement ? s.parentElement.tagName : '';
		if (parent === 'AUDIO') audios.add(s.src);
		else videos.add(s.src);
	});
	return {
		videos: [...videos],
		audios: [...audios],
		slide_count: document.querySelectorAll('svg').length
	};
})()`

// recordingsTableSel matches the recordings table in either markup variant.
const recordingsTableSel = `#bigbluebuttonbn_recordings_table, .generaltable`

// mediaElementsSel matches any media element on a playback page.
const mediaElementsSel = `video, audio, source`
